package models

import (
	"time"

	"github.com/google/uuid"
)

type LogStatus string

const (
	StatusSuccess      LogStatus = "success"
	StatusGraphQLError LogStatus = "graphql_error"
	StatusClientError  LogStatus = "client_error"
	StatusServerError  LogStatus = "server_error"
	StatusUnauthorized LogStatus = "unauthorized"
	StatusUnknown      LogStatus = "unknown"
)

// Valid reports whether s is one of the known status values.
func (s LogStatus) Valid() bool {
	switch s {
	case StatusSuccess, StatusGraphQLError, StatusClientError,
		StatusServerError, StatusUnauthorized, StatusUnknown:
		return true
	}
	return false
}

// Represents the compact, queryable audit row written once per logged request
type LogSummary struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CorrelationID uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"correlation_id"`
	UserID        *uuid.UUID `gorm:"type:uuid;index:idx_security_logs_user_created,priority:1" json:"user_id,omitempty"`
	Email         *string    `json:"email,omitempty"`
	Operation     string     `gorm:"not null;index:idx_security_logs_op_created,priority:1" json:"operation"`
	Module        *string    `gorm:"index:idx_security_logs_module_created,priority:1" json:"module,omitempty"`
	IPAddress     string     `json:"ip_address"`
	Status        LogStatus  `gorm:"type:varchar(20);index:idx_security_logs_status_created,priority:1" json:"status"`
	CreatedAt     time.Time  `gorm:"index:idx_security_logs_user_created,priority:2;index:idx_security_logs_op_created,priority:2;index:idx_security_logs_status_created,priority:2;index:idx_security_logs_module_created,priority:2" json:"created_at"`
}

func (LogSummary) TableName() string {
	return "security_logs"
}
