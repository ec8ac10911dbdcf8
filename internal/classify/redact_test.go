package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactHeaders(t *testing.T) {
	headers := map[string]string{
		"Authorization": "Bearer secret-token",
		"Cookie":        "session=abc123",
		"X-API-Key":     "key-value",
		"Content-Type":  "application/json",
		"User-Agent":    "test-client/1.0",
	}

	redacted := RedactHeaders(headers)

	assert.Equal(t, RedactionMarker, redacted["Authorization"])
	assert.Equal(t, RedactionMarker, redacted["Cookie"])
	assert.Equal(t, RedactionMarker, redacted["X-API-Key"])
	assert.Equal(t, "application/json", redacted["Content-Type"])
	assert.Equal(t, "test-client/1.0", redacted["User-Agent"])
}

func TestRedactHeadersCaseInsensitive(t *testing.T) {
	redacted := RedactHeaders(map[string]string{
		"authorization": "secret",
		"COOKIE":        "secret",
		"x-Auth-Token":  "secret",
	})

	for name, value := range redacted {
		assert.Equal(t, RedactionMarker, value, "header %s should be redacted", name)
	}
}

func TestRedactHeadersDoesNotMutateInput(t *testing.T) {
	headers := map[string]string{"Authorization": "Bearer secret"}

	_ = RedactHeaders(headers)

	assert.Equal(t, "Bearer secret", headers["Authorization"])
}

func TestRedactHeadersEmpty(t *testing.T) {
	assert.Empty(t, RedactHeaders(map[string]string{}))
	assert.Empty(t, RedactHeaders(nil))
}
