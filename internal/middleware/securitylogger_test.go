package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orghub/security-log/internal/classify"
	"github.com/orghub/security-log/internal/models"
)

type fakeSummaryWriter struct {
	mu        sync.Mutex
	summaries []*models.LogSummary
	err       error
}

func (f *fakeSummaryWriter) Create(ctx context.Context, log *models.LogSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.summaries = append(f.summaries, log)
	return nil
}

type fakeDetailWriter struct {
	mu      sync.Mutex
	details []*models.LogDetail
	err     error
}

func (f *fakeDetailWriter) Create(ctx context.Context, detail *models.LogDetail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.details = append(f.details, detail)
	return nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestRouter(summaries SummaryWriter, details DetailWriter, downstream gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/graphql", SecurityLogger(summaries, details, classify.DefaultModuleRules(), testLogger()), downstream)
	return router
}

func graphqlDownstream(status int, body string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(status, "application/json", []byte(body))
	}
}

func doGraphQL(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer super-secret")
	req.Header.Set("User-Agent", "test-client/1.0")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSecurityLoggerSuccess(t *testing.T) {
	summaries := &fakeSummaryWriter{}
	details := &fakeDetailWriter{}
	router := newTestRouter(summaries, details, graphqlDownstream(200, `{"data":{"createUser":{"id":"1"}}}`))

	rec := doGraphQL(t, router, `{"query":"mutation CreateUser { createUser { id } }"}`)

	assert.Equal(t, 200, rec.Code)
	require.Len(t, summaries.summaries, 1)

	summary := summaries.summaries[0]
	assert.Equal(t, "CreateUser", summary.Operation)
	require.NotNil(t, summary.Module)
	assert.Equal(t, "UserManagement", *summary.Module)
	assert.Equal(t, models.StatusSuccess, summary.Status)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", summary.CorrelationID.String())

	require.Len(t, details.details, 1)
	detail := details.details[0]
	assert.Equal(t, summary.CorrelationID.String(), detail.CorrelationID)
	assert.Equal(t, 200, detail.Details.Response.StatusCode)
	assert.Equal(t, "test-client/1.0", detail.Details.Request.UserAgent)
}

func TestSecurityLoggerGraphQLError(t *testing.T) {
	summaries := &fakeSummaryWriter{}
	router := newTestRouter(summaries, &fakeDetailWriter{}, graphqlDownstream(200, `{"errors":[{"message":"validation failed"}]}`))

	doGraphQL(t, router, `{"query":"mutation CreateUser { createUser { id } }"}`)

	require.Len(t, summaries.summaries, 1)
	assert.Equal(t, models.StatusGraphQLError, summaries.summaries[0].Status)
}

func TestSecurityLoggerSkipsIntrospection(t *testing.T) {
	summaries := &fakeSummaryWriter{}
	details := &fakeDetailWriter{}
	router := newTestRouter(summaries, details, graphqlDownstream(200, `{"data":{}}`))

	for _, body := range []string{
		`{"query":"query IntrospectionQuery { __schema { types { name } } }"}`,
		`{"query":"{ __schema { types { name } } }"}`,
		`{"query":"{ __typename }"}`,
		`{"query":"{ __type(name: \"User\") { name } }"}`,
	} {
		rec := doGraphQL(t, router, body)
		assert.Equal(t, 200, rec.Code)
	}

	assert.Empty(t, summaries.summaries)
	assert.Empty(t, details.details)
}

func TestSecurityLoggerFailOpenOnMalformedBody(t *testing.T) {
	summaries := &fakeSummaryWriter{}
	router := newTestRouter(summaries, &fakeDetailWriter{}, graphqlDownstream(200, `{"data":{}}`))

	doGraphQL(t, router, `this is not json`)

	require.Len(t, summaries.summaries, 1)
	assert.Equal(t, classify.UnknownOperation, summaries.summaries[0].Operation)
}

func TestSecurityLoggerCorrelationIDsDistinct(t *testing.T) {
	summaries := &fakeSummaryWriter{}
	router := newTestRouter(summaries, &fakeDetailWriter{}, graphqlDownstream(200, `{"data":{}}`))

	doGraphQL(t, router, `{"query":"query GetUsers { users { id } }"}`)
	doGraphQL(t, router, `{"query":"query GetUsers { users { id } }"}`)

	require.Len(t, summaries.summaries, 2)
	assert.NotEqual(t, summaries.summaries[0].CorrelationID, summaries.summaries[1].CorrelationID)
}

func TestSecurityLoggerRedactsSensitiveHeaders(t *testing.T) {
	details := &fakeDetailWriter{}
	router := newTestRouter(&fakeSummaryWriter{}, details, graphqlDownstream(200, `{"data":{}}`))

	doGraphQL(t, router, `{"query":"query GetUsers { users { id } }"}`)

	require.Len(t, details.details, 1)
	headers := details.details[0].Details.Request.Headers
	assert.Equal(t, classify.RedactionMarker, headers["Authorization"])
	assert.NotContains(t, headers["Authorization"], "super-secret")
	assert.Equal(t, "application/json", headers["Content-Type"])
}

func TestSecurityLoggerSummaryFailureDoesNotAffectResponse(t *testing.T) {
	summaries := &fakeSummaryWriter{err: errors.New("postgres down")}
	details := &fakeDetailWriter{}
	router := newTestRouter(summaries, details, graphqlDownstream(200, `{"data":{"ok":true}}`))

	rec := doGraphQL(t, router, `{"query":"query GetUsers { users { id } }"}`)

	assert.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"data":{"ok":true}}`, rec.Body.String())
	// Detail is skipped when the authoritative write fails
	assert.Empty(t, details.details)
}

func TestSecurityLoggerDetailFailureDoesNotAffectResponse(t *testing.T) {
	summaries := &fakeSummaryWriter{}
	details := &fakeDetailWriter{err: errors.New("mongo down")}
	router := newTestRouter(summaries, details, graphqlDownstream(200, `{"data":{"ok":true}}`))

	rec := doGraphQL(t, router, `{"query":"query GetUsers { users { id } }"}`)

	assert.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"data":{"ok":true}}`, rec.Body.String())
	// The summary row stands even though the detail write failed
	require.Len(t, summaries.summaries, 1)
}

func TestSecurityLoggerNilDetailWriter(t *testing.T) {
	summaries := &fakeSummaryWriter{}
	router := newTestRouter(summaries, nil, graphqlDownstream(200, `{"data":{}}`))

	rec := doGraphQL(t, router, `{"query":"query GetUsers { users { id } }"}`)

	assert.Equal(t, 200, rec.Code)
	require.Len(t, summaries.summaries, 1)
}

func TestSecurityLoggerAttributesAuthenticatedCaller(t *testing.T) {
	summaries := &fakeSummaryWriter{}
	gin.SetMode(gin.TestMode)
	router := gin.New()

	userID := "7b8a3a6e-53a4-4f3c-9d2e-1f9a0c2b4d55"
	router.POST("/graphql",
		func(c *gin.Context) {
			c.Set("user_id", userID)
			c.Set("email", "admin@example.com")
		},
		SecurityLogger(summaries, nil, classify.DefaultModuleRules(), testLogger()),
		graphqlDownstream(200, `{"data":{}}`),
	)

	doGraphQL(t, router, `{"query":"query GetUsers { users { id } }"}`)

	require.Len(t, summaries.summaries, 1)
	summary := summaries.summaries[0]
	require.NotNil(t, summary.UserID)
	assert.Equal(t, userID, summary.UserID.String())
	require.NotNil(t, summary.Email)
	assert.Equal(t, "admin@example.com", *summary.Email)
}

func TestSecurityLoggerUnauthorizedStatus(t *testing.T) {
	summaries := &fakeSummaryWriter{}
	router := newTestRouter(summaries, nil, graphqlDownstream(401, `{"error":"token expired"}`))

	rec := doGraphQL(t, router, `{"query":"query GetUsers { users { id } }"}`)

	assert.Equal(t, 401, rec.Code)
	require.Len(t, summaries.summaries, 1)
	assert.Equal(t, models.StatusUnauthorized, summaries.summaries[0].Status)
}
