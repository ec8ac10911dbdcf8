package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/orghub/security-log/internal/classify"
	"github.com/orghub/security-log/internal/models"
)

const writeTimeout = 5 * time.Second

// Write side of the summary store.
type SummaryWriter interface {
	Create(ctx context.Context, log *models.LogSummary) error
}

// Write side of the detail store.
type DetailWriter interface {
	Create(ctx context.Context, detail *models.LogDetail) error
}

// GraphQL request envelope
type graphqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// Captures the response body alongside the normal write path
type bodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *bodyWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// SecurityLogger records every non-introspection GraphQL call: one summary
// row (authoritative) and one detail document (best-effort), correlated by a
// fresh uuid. Logging failures are swallowed; the functional response is
// never altered or delayed by an error in this middleware.
//
// details may be nil when the document store is not configured.
func SecurityLogger(summaries SummaryWriter, details DetailWriter, rules []classify.ModuleRule, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Capture the request body and restore it for the downstream handler
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		writer := &bodyWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		duration := time.Since(start)

		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("panic", r).Error("panic in security logging pipeline")
				}
			}()

			logRequest(c, requestBody, writer.body.Bytes(), start, duration, summaries, details, rules, log)
		}()
	}
}

func logRequest(c *gin.Context, requestBody, responseBody []byte, start time.Time, duration time.Duration, summaries SummaryWriter, details DetailWriter, rules []classify.ModuleRule, log *logrus.Logger) {
	// Malformed envelopes still log, as unknown_operation (fail-open)
	var envelope graphqlRequest
	_ = json.Unmarshal(requestBody, &envelope)

	operation, module := classify.Operation(envelope.Query, envelope.OperationName, rules)
	if classify.Excluded(operation) {
		return
	}

	correlationID := uuid.New()
	status := classify.Status(c.Writer.Status(), string(responseBody))

	summary := &models.LogSummary{
		CorrelationID: correlationID,
		Operation:     operation,
		Module:        &module,
		IPAddress:     c.ClientIP(),
		Status:        status,
		CreatedAt:     start.UTC(),
	}
	attachCaller(c, summary)

	entry := log.WithFields(logrus.Fields{
		"correlation_id": correlationID.String(),
		"operation":      operation,
	})

	// The response has already been sent; writes get their own deadline
	// instead of the (possibly canceled) request context.
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := summaries.Create(ctx, summary); err != nil {
		entry.WithError(err).Error("failed to write security log summary")
		return
	}

	if details == nil {
		return
	}

	detail := buildDetail(c, correlationID, envelope, requestBody, responseBody, start, duration)
	if err := details.Create(ctx, detail); err != nil {
		// Accepted degraded state: the summary row stands on its own
		entry.WithError(err).Warn("failed to write security log detail")
	}
}

func attachCaller(c *gin.Context, summary *models.LogSummary) {
	if idStr := c.GetString("user_id"); idStr != "" {
		if id, err := uuid.Parse(idStr); err == nil {
			summary.UserID = &id
		}
	}
	if email := c.GetString("email"); email != "" {
		summary.Email = &email
	}
}

func buildDetail(c *gin.Context, correlationID uuid.UUID, envelope graphqlRequest, requestBody, responseBody []byte, start time.Time, duration time.Duration) *models.LogDetail {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// Decode the response body when it is JSON, keep it raw otherwise
	var decodedBody any
	if err := json.Unmarshal(responseBody, &decodedBody); err != nil {
		decodedBody = string(responseBody)
	}

	query := envelope.Query
	if query == "" {
		query = string(requestBody)
	}

	return &models.LogDetail{
		CorrelationID: correlationID.String(),
		Details: models.LogDetailBody{
			Request: models.RequestDetail{
				Headers:   classify.RedactHeaders(flattenHeaders(c.Request.Header)),
				Variables: envelope.Variables,
				Query:     query,
				UserAgent: c.Request.UserAgent(),
				Timestamp: start.UTC(),
			},
			Response: models.ResponseDetail{
				StatusCode: c.Writer.Status(),
				Headers:    flattenHeaders(c.Writer.Header()),
				Body:       decodedBody,
				SizeBytes:  len(responseBody),
			},
			Execution: models.ExecutionDetail{
				DurationMs:       duration.Milliseconds(),
				MemoryAllocBytes: memStats.Alloc,
				MemoryTotalBytes: memStats.TotalAlloc,
			},
		},
		CreatedAt: start.UTC(),
	}
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) > 0 {
			flat[name] = values[0]
		}
	}

	return flat
}
