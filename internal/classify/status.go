package classify

import (
	"net/http"
	"strings"

	"github.com/orghub/security-log/internal/models"
)

// Status derives the outcome category from the HTTP status code and the raw
// response body. GraphQL servers return 200 even when the payload carries
// errors, so a 2xx body is inspected for an "errors" member.
func Status(httpStatus int, body string) models.LogStatus {
	switch {
	case httpStatus >= 200 && httpStatus < 300:
		if strings.Contains(body, `"errors":`) {
			return models.StatusGraphQLError
		}
		return models.StatusSuccess
	case httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden:
		return models.StatusUnauthorized
	case httpStatus >= 400 && httpStatus < 500:
		return models.StatusClientError
	case httpStatus >= 500:
		return models.StatusServerError
	default:
		return models.StatusUnknown
	}
}
