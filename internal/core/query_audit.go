package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/sqlsandbox/internal/model"
)

// QueryAuditLog is an async writer for query_audit_logs. Record never
// blocks; entries are dropped when the buffer is full or after Close.
type QueryAuditLog struct {
	db     DB
	logger zerolog.Logger
	ch     chan model.QueryAuditEntry
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewQueryAuditLog(db DB, logger zerolog.Logger, buffer int) *QueryAuditLog {
	if buffer <= 0 {
		buffer = 1024
	}
	al := &QueryAuditLog{
		db:     db,
		logger: logger.With().Str("component", "query-audit").Logger(),
		ch:     make(chan model.QueryAuditEntry, buffer),
		done:   make(chan struct{}),
	}
	go al.drain()
	return al
}

func (al *QueryAuditLog) drain() {
	defer close(al.done)
	for entry := range al.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := al.db.Exec(ctx,
			`INSERT INTO query_audit_logs (id, caller_id, logical_database, target, policy, command_kind, outcome, duration_ms, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			entry.ID, entry.CallerID, entry.LogicalDatabase, entry.Target, entry.Policy,
			entry.CommandKind, entry.Outcome, entry.Duration.Milliseconds(), entry.CreatedAt,
		)
		cancel()
		if err != nil {
			al.logger.Error().Err(err).Str("audit_id", entry.ID).Msg("failed to write query audit log")
		}
	}
}

// Record queues an entry.
func (al *QueryAuditLog) Record(entry model.QueryAuditEntry) {
	al.mu.RLock()
	defer al.mu.RUnlock()
	if al.closed {
		al.logger.Warn().Str("audit_id", entry.ID).Msg("query audit log closed, dropping entry")
		return
	}
	select {
	case al.ch <- entry:
	default:
		al.logger.Warn().Msg("query audit buffer full, dropping entry")
	}
}

// Close stops accepting entries and waits until queued ones are written.
// It is safe to call more than once.
func (al *QueryAuditLog) Close() {
	al.mu.Lock()
	if !al.closed {
		al.closed = true
		close(al.ch)
	}
	al.mu.Unlock()
	<-al.done
}
