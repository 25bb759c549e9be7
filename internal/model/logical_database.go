package model

import (
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("record not found")

// LogicalDatabase is an instructor-owned database definition. Its Name is
// also the name of the physical source database on the sandbox server.
type LogicalDatabase struct {
	Name      string    `json:"name" db:"name"`
	OwnerID   *int      `json:"owner_id,omitempty" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// OwnedBy reports whether userID is the recorded owner.
func (d *LogicalDatabase) OwnedBy(userID int) bool {
	return d.OwnerID != nil && *d.OwnerID == userID
}
