package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orghub/security-log/internal/models"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name       string
		httpStatus int
		body       string
		want       models.LogStatus
	}{
		{"plain success", 200, `{"data":{"createUser":{"id":"1"}}}`, models.StatusSuccess},
		{"201 success", 201, `{"data":{}}`, models.StatusSuccess},
		{"200 with graphql errors", 200, `{"errors":[{"message":"boom"}]}`, models.StatusGraphQLError},
		{"empty body success", 204, ``, models.StatusSuccess},
		{"unauthorized", 401, `{"error":"no token"}`, models.StatusUnauthorized},
		{"forbidden", 403, `{"error":"nope"}`, models.StatusUnauthorized},
		{"client error", 422, `{"error":"bad input"}`, models.StatusClientError},
		{"not found", 404, ``, models.StatusClientError},
		{"server error", 500, ``, models.StatusServerError},
		{"bad gateway", 502, ``, models.StatusServerError},
		{"redirect is unknown", 302, ``, models.StatusUnknown},
		{"informational is unknown", 101, ``, models.StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Status(tt.httpStatus, tt.body)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}
