package model

import "time"

// CopyState is the lease state of a (logical database, requester) pair.
type CopyState string

// Copy lease states.
const (
	CopyAbsent       CopyState = "absent"
	CopyProvisioning CopyState = "provisioning"
	CopyActive       CopyState = "active"
)

// CopyStateOf derives the lease state from a copy record, which may be nil.
// Provisioning is never persisted; it only exists while a clone is in flight.
func CopyStateOf(c *DatabaseCopy, now time.Time) CopyState {
	if c == nil || c.Expired(now) {
		return CopyAbsent
	}
	return CopyActive
}
