package sandbox_test

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/sqlsandbox/internal/model"
	"github.com/edvin/sqlsandbox/internal/sandbox"
	"github.com/edvin/sqlsandbox/internal/sandbox/sandboxtest"
)

const (
	ownerID    = 1
	studentID  = 2
	strangerID = 3
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []model.QueryAuditEntry
}

func (a *recordingAuditor) Record(e model.QueryAuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *recordingAuditor) Entries() []model.QueryAuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.QueryAuditEntry(nil), a.entries...)
}

type fixture struct {
	repo    *sandboxtest.MemoryRepository
	driver  *sandboxtest.FakeDriver
	clock   *fakeClock
	auditor *recordingAuditor
	sb      *sandbox.Sandbox
}

// newFixture sets up a server with a "shop" database owned by ownerID.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	owner := ownerID
	repo := sandboxtest.NewMemoryRepository()
	repo.AddDatabase("shop", &owner)
	driver := sandboxtest.NewFakeDriver("postgres", "shop")
	clock := newFakeClock()
	auditor := &recordingAuditor{}

	opts := sandbox.DefaultOptions()
	opts.Clock = clock.Now
	opts.ReadTimeout = 200 * time.Millisecond
	opts.ManipulationTimeout = 200 * time.Millisecond

	return &fixture{
		repo:    repo,
		driver:  driver,
		clock:   clock,
		auditor: auditor,
		sb:      sandbox.New(repo, driver, zerolog.Nop(), opts, auditor),
	}
}
