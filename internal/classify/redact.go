package classify

import "strings"

const RedactionMarker = "[REDACTED]"

var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"set-cookie":          {},
	"x-api-key":           {},
	"api-key":             {},
	"x-auth-token":        {},
}

// RedactHeaders returns a copy of headers with the values of sensitive
// headers replaced by RedactionMarker. The input map is not mutated.
func RedactHeaders(headers map[string]string) map[string]string {
	redacted := make(map[string]string, len(headers))
	for name, value := range headers {
		if _, sensitive := sensitiveHeaders[strings.ToLower(name)]; sensitive {
			redacted[name] = RedactionMarker
			continue
		}
		redacted[name] = value
	}

	return redacted
}
