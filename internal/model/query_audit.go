package model

import "time"

// QueryAuditEntry records one sandboxed statement execution.
type QueryAuditEntry struct {
	ID              string        `json:"id" db:"id"`
	CallerID        int           `json:"caller_id" db:"caller_id"`
	LogicalDatabase string        `json:"logical_database" db:"logical_database"`
	Target          string        `json:"target" db:"target"`
	Policy          string        `json:"policy" db:"policy"`
	CommandKind     string        `json:"command_kind" db:"command_kind"`
	Outcome         string        `json:"outcome" db:"outcome"`
	Duration        time.Duration `json:"duration" db:"duration_ms"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
}
