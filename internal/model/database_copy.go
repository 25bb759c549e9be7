package model

import "time"

// DatabaseCopy is an ephemeral physical clone of a LogicalDatabase scoped to
// a single requester.
type DatabaseCopy struct {
	CopyName        string     `json:"copy_database" db:"copy_name"`
	LogicalDatabase string     `json:"original_database" db:"logical_database"`
	RequesterID     int        `json:"user_id" db:"requester_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt      *time.Time `json:"last_used,omitempty" db:"last_used_at"`
	ExpiresAt       time.Time  `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the lease has run out at the given instant.
// A copy whose expiry equals now is still live.
func (c *DatabaseCopy) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}
