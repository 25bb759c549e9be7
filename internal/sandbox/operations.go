package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edvin/sqlsandbox/internal/metrics"
	"github.com/edvin/sqlsandbox/internal/model"
	"github.com/edvin/sqlsandbox/internal/platform"
)

// ManipulationRequest is a sandboxed exercise statement.
type ManipulationRequest struct {
	Database string
	CallerID int
	Query    string
	// Reset discards the caller's copy before running the statement.
	Reset bool
}

// ManipulationResult is the outcome of RunManipulation.
type ManipulationResult struct {
	*ExecutionResult
	Database       string
	CopyDatabase   string
	ResetPerformed bool
}

// RunQuery runs a read-only inspection statement directly against the
// source database inside a READ ONLY transaction.
func (s *Sandbox) RunQuery(ctx context.Context, database string, callerID int, query string) (*ExecutionResult, error) {
	if _, _, err := s.gate.Authorize(ctx, database, callerID); err != nil {
		return nil, err
	}
	database = normalizeName(database)
	start := time.Now()

	stmt, err := validate(PolicyReadOnly, query)
	if err != nil {
		s.record(PolicyReadOnly, callerID, database, database, stmt.Kind, err, time.Since(start))
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.ReadTimeout)
	defer cancel()

	res, err := s.engine.execute(ctx, stmt.Text, database, true)
	s.record(PolicyReadOnly, callerID, database, database, stmt.Kind, err, time.Since(start))
	return res, err
}

// RunManipulation runs a statement against the caller's private copy of the
// database, creating the copy on first use.
func (s *Sandbox) RunManipulation(ctx context.Context, req ManipulationRequest) (*ManipulationResult, error) {
	if _, _, err := s.gate.Authorize(ctx, req.Database, req.CallerID); err != nil {
		return nil, err
	}
	database := normalizeName(req.Database)
	start := time.Now()

	stmt, err := validate(PolicyManipulation, req.Query)
	if err != nil {
		s.record(PolicyManipulation, req.CallerID, database, "", stmt.Kind, err, time.Since(start))
		return nil, err
	}

	if req.Reset {
		if err := s.copies.ResetCopy(ctx, database, req.CallerID); err != nil {
			return nil, err
		}
	}

	target, err := s.copies.EnsureCopy(ctx, database, req.CallerID)
	if err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, s.opts.ManipulationTimeout)
	defer cancel()

	res, err := s.engine.execute(execCtx, stmt.Text, target, false)
	s.record(PolicyManipulation, req.CallerID, database, target, stmt.Kind, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return &ManipulationResult{
		ExecutionResult: res,
		Database:        database,
		CopyDatabase:    target,
		ResetPerformed:  req.Reset,
	}, nil
}

// ListDatabases returns the logical databases callerID may use.
func (s *Sandbox) ListDatabases(ctx context.Context, callerID int) ([]model.LogicalDatabase, error) {
	all, err := s.repo.ListLogicalDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list logical databases: %w", err)
	}

	visible := make([]model.LogicalDatabase, 0, len(all))
	for i := range all {
		grant, err := s.gate.grant(ctx, &all[i], callerID)
		if err != nil {
			return nil, err
		}
		if grant != nil {
			visible = append(visible, all[i])
		}
	}
	return visible, nil
}

// DeleteDatabase removes a logical database, its physical source and every
// copy. Only the owner may delete; anyone else sees NotFound.
func (s *Sandbox) DeleteDatabase(ctx context.Context, name string, callerID int) error {
	grant, db, err := s.gate.Authorize(ctx, name, callerID)
	if err != nil {
		return err
	}
	if _, ok := grant.(OwnerGrant); !ok {
		return notFound(name)
	}

	copies, err := s.repo.ListCopies(ctx, db.Name)
	if err != nil {
		return fmt.Errorf("list copies of %s: %w", db.Name, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepParallelism)
	for _, c := range copies {
		g.Go(func() error {
			return s.copies.remove(gctx, c)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.admin.dropDatabase(ctx, db.Name); err != nil {
		return fmt.Errorf("drop database %s: %w", db.Name, err)
	}
	if err := s.repo.DeleteLogicalDatabase(ctx, db.Name); err != nil {
		return fmt.Errorf("delete logical database %s: %w", db.Name, err)
	}

	s.logger.Info().Str("database", db.Name).Int("copies", len(copies)).Msg("logical database deleted")
	return nil
}

func (s *Sandbox) record(policy Policy, callerID int, database, target string, kind CommandKind, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
		if errors.Is(err, ErrTimeout) {
			s.logger.Warn().Str("database", database).Int("caller", callerID).Dur("duration", d).Msg("statement timed out")
		}
	}
	metrics.ObserveStatement(policy.String(), string(kind), outcome, d)

	if s.auditor == nil {
		return
	}
	s.auditor.Record(model.QueryAuditEntry{
		ID:              platform.NewID(),
		CallerID:        callerID,
		LogicalDatabase: database,
		Target:          target,
		Policy:          policy.String(),
		CommandKind:     string(kind),
		Outcome:         outcome,
		Duration:        d,
		CreatedAt:       s.opts.Clock(),
	})
}
