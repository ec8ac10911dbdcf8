package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Bulky forensic payload stored per correlation id. Best-effort: a summary row
// may exist without a matching detail document.
type LogDetail struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	CorrelationID string             `bson:"correlation_id" json:"correlation_id"`
	Details       LogDetailBody      `bson:"details" json:"details"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

type LogDetailBody struct {
	Request   RequestDetail   `bson:"request" json:"request"`
	Response  ResponseDetail  `bson:"response" json:"response"`
	Execution ExecutionDetail `bson:"execution" json:"execution"`
}

type RequestDetail struct {
	Headers   map[string]string `bson:"headers" json:"headers"`
	Variables map[string]any    `bson:"variables,omitempty" json:"variables,omitempty"`
	Query     string            `bson:"query" json:"query"`
	UserAgent string            `bson:"user_agent" json:"user_agent"`
	Timestamp time.Time         `bson:"timestamp" json:"timestamp"`
}

type ResponseDetail struct {
	StatusCode int               `bson:"status_code" json:"status_code"`
	Headers    map[string]string `bson:"headers" json:"headers"`
	Body       any               `bson:"body,omitempty" json:"body,omitempty"`
	SizeBytes  int               `bson:"size_bytes" json:"size_bytes"`
}

type ExecutionDetail struct {
	DurationMs       int64  `bson:"duration_ms" json:"duration_ms"`
	MemoryAllocBytes uint64 `bson:"memory_alloc_bytes" json:"memory_alloc_bytes"`
	MemoryTotalBytes uint64 `bson:"memory_total_bytes" json:"memory_total_bytes"`
}
