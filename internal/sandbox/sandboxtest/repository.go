// Package sandboxtest provides in-memory fakes of the sandbox repository and
// driver for tests.
package sandboxtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/edvin/sqlsandbox/internal/model"
)

// ErrDuplicate is returned by MemoryRepository on a uniqueness violation.
var ErrDuplicate = errors.New("duplicate key")

type copyKey struct {
	logical   string
	requester int
}

// MemoryRepository is a sandbox.Repository backed by maps. It enforces the
// same uniqueness rules as the core database.
type MemoryRepository struct {
	mu         sync.Mutex
	databases  map[string]model.LogicalDatabase
	copies     map[copyKey]model.DatabaseCopy
	worksheets map[string]int
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		databases:  make(map[string]model.LogicalDatabase),
		copies:     make(map[copyKey]model.DatabaseCopy),
		worksheets: make(map[string]int),
	}
}

// AddDatabase registers a logical database owned by ownerID, or unowned when
// ownerID is nil.
func (r *MemoryRepository) AddDatabase(name string, ownerID *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.databases[name] = model.LogicalDatabase{Name: name, OwnerID: ownerID, CreatedAt: time.Now()}
}

// SetWorksheetReferences sets how many worksheets reference name.
func (r *MemoryRepository) SetWorksheetReferences(name string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.worksheets[name] = n
}

// PutCopy stores c unconditionally.
func (r *MemoryRepository) PutCopy(c model.DatabaseCopy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.copies[copyKey{c.LogicalDatabase, c.RequesterID}] = c
}

// Copies returns all copy records sorted by name.
func (r *MemoryRepository) Copies() []model.DatabaseCopy {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.DatabaseCopy, 0, len(r.copies))
	for _, c := range r.copies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CopyName < out[j].CopyName })
	return out
}

func (r *MemoryRepository) GetLogicalDatabase(_ context.Context, name string) (*model.LogicalDatabase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	db, ok := r.databases[name]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &db, nil
}

func (r *MemoryRepository) CreateLogicalDatabase(_ context.Context, db *model.LogicalDatabase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.databases[db.Name]; ok {
		return ErrDuplicate
	}
	r.databases[db.Name] = *db
	return nil
}

func (r *MemoryRepository) DeleteLogicalDatabase(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.databases[name]; !ok {
		return model.ErrNotFound
	}
	delete(r.databases, name)
	for k := range r.copies {
		if k.logical == name {
			delete(r.copies, k)
		}
	}
	return nil
}

func (r *MemoryRepository) ListLogicalDatabases(_ context.Context) ([]model.LogicalDatabase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.LogicalDatabase, 0, len(r.databases))
	for _, db := range r.databases {
		out = append(out, db)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) CountWorksheetReferences(_ context.Context, name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.worksheets[name], nil
}

func (r *MemoryRepository) GetCopy(_ context.Context, logical string, requesterID int) (*model.DatabaseCopy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.copies[copyKey{logical, requesterID}]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) InsertCopyIfAbsent(_ context.Context, c *model.DatabaseCopy) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := copyKey{c.LogicalDatabase, c.RequesterID}
	if _, ok := r.copies[key]; ok {
		return false, nil
	}
	for _, existing := range r.copies {
		if existing.CopyName == c.CopyName {
			return false, ErrDuplicate
		}
	}
	r.copies[key] = *c
	return true, nil
}

func (r *MemoryRepository) TouchCopy(_ context.Context, copyName string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, c := range r.copies {
		if c.CopyName == copyName {
			c.LastUsedAt = &at
			r.copies[k] = c
			return nil
		}
	}
	return model.ErrNotFound
}

func (r *MemoryRepository) DeleteCopy(_ context.Context, copyName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, c := range r.copies {
		if c.CopyName == copyName {
			delete(r.copies, k)
			return nil
		}
	}
	return nil
}

func (r *MemoryRepository) ListCopies(_ context.Context, logical string) ([]model.DatabaseCopy, error) {
	var out []model.DatabaseCopy
	for _, c := range r.Copies() {
		if c.LogicalDatabase == logical {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListExpiredCopies(_ context.Context, now time.Time) ([]model.DatabaseCopy, error) {
	var out []model.DatabaseCopy
	for _, c := range r.Copies() {
		if c.Expired(now) {
			out = append(out, c)
		}
	}
	return out, nil
}
