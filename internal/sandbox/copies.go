package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/sqlsandbox/internal/metrics"
	"github.com/edvin/sqlsandbox/internal/model"
)

// sweepParallelism bounds concurrent DROP DATABASE calls during a sweep.
const sweepParallelism = 4

// CopyManager provisions and reaps per-requester copies of logical
// databases. It holds no locks: the repository's uniqueness constraint on
// (logical database, requester) decides which of two racing provisions wins.
type CopyManager struct {
	repo   Repository
	admin  *admin
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

func newCopyManager(repo Repository, adm *admin, opts Options, logger zerolog.Logger) *CopyManager {
	return &CopyManager{
		repo:   repo,
		admin:  adm,
		ttl:    opts.CopyTTL,
		now:    opts.Clock,
		logger: logger.With().Str("component", "copy-manager").Logger(),
	}
}

// EnsureCopy returns the name of the requester's active copy, provisioning
// one when the pair is Absent. It is safe to call concurrently for the same
// pair; all callers observe the same name once the copy is Active.
func (m *CopyManager) EnsureCopy(ctx context.Context, logicalDatabase string, requesterID int) (string, error) {
	logicalDatabase = normalizeName(logicalDatabase)

	existing, err := m.repo.GetCopy(ctx, logicalDatabase, requesterID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return "", fmt.Errorf("get copy of %s for %d: %w", logicalDatabase, requesterID, err)
	}

	now := m.now()
	if model.CopyStateOf(existing, now) == model.CopyActive {
		if err := m.repo.TouchCopy(ctx, existing.CopyName, now); err != nil {
			m.logger.Warn().Err(err).Str("copy", existing.CopyName).Msg("failed to bump copy last-used")
		}
		return existing.CopyName, nil
	}

	if existing != nil {
		// Expired but not yet swept.
		if err := m.remove(ctx, *existing); err != nil {
			return "", wrapError(KindProvisioningFailed, err, "reap expired copy %s", existing.CopyName)
		}
	}
	return m.provision(ctx, logicalDatabase, requesterID)
}

func (m *CopyManager) provision(ctx context.Context, logicalDatabase string, requesterID int) (string, error) {
	now := m.now()
	name := copyName(logicalDatabase, requesterID, now)
	log := m.logger.With().Str("database", logicalDatabase).Int("requester", requesterID).Str("copy", name).Logger()
	log.Info().Str("state", string(model.CopyProvisioning)).Msg("provisioning database copy")

	if err := m.admin.cloneDatabase(ctx, logicalDatabase, name); err != nil {
		return "", wrapError(KindProvisioningFailed, err, "clone %s", logicalDatabase)
	}

	record := &model.DatabaseCopy{
		CopyName:        name,
		LogicalDatabase: logicalDatabase,
		RequesterID:     requesterID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(m.ttl),
	}
	inserted, err := m.repo.InsertCopyIfAbsent(ctx, record)
	if err != nil {
		m.dropDetached(name, log)
		return "", wrapError(KindProvisioningFailed, err, "record copy %s", name)
	}
	if !inserted {
		log.Info().Msg("copy provisioned concurrently, discarding redundant clone")
		m.dropDetached(name, log)

		winner, err := m.repo.GetCopy(ctx, logicalDatabase, requesterID)
		if err != nil {
			return "", wrapError(KindProvisioningFailed, err, "get concurrently provisioned copy")
		}
		return winner.CopyName, nil
	}

	metrics.CopiesProvisioned.Inc()
	log.Info().Str("state", string(model.CopyActive)).Time("expires_at", record.ExpiresAt).Msg("database copy active")
	return name, nil
}

// ResetCopy drops the requester's copy and its record. A missing copy is
// not an error.
func (m *CopyManager) ResetCopy(ctx context.Context, logicalDatabase string, requesterID int) error {
	logicalDatabase = normalizeName(logicalDatabase)

	existing, err := m.repo.GetCopy(ctx, logicalDatabase, requesterID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get copy of %s for %d: %w", logicalDatabase, requesterID, err)
	}

	if err := m.remove(ctx, *existing); err != nil {
		return err
	}
	m.logger.Info().Str("copy", existing.CopyName).Int("requester", requesterID).Msg("database copy reset")
	return nil
}

// SweepExpiredCopies removes all copies whose expiry lies strictly in the
// past and returns how many were removed. A copy that cannot be dropped is
// logged and left for the next sweep.
func (m *CopyManager) SweepExpiredCopies(ctx context.Context) (int, error) {
	expired, err := m.repo.ListExpiredCopies(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("list expired copies: %w", err)
	}

	var deleted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepParallelism)
	for _, c := range expired {
		g.Go(func() error {
			if err := m.remove(gctx, c); err != nil {
				metrics.CopySweepFailures.Inc()
				m.logger.Error().Err(err).Str("copy", c.CopyName).Msg("failed to sweep expired copy")
				return nil
			}
			deleted.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	n := int(deleted.Load())
	metrics.CopiesSwept.Add(float64(n))
	m.logger.Info().Int("expired", len(expired)).Int("deleted", n).Msg("expired copy sweep finished")
	return n, nil
}

// remove drops the physical copy first and the record second, so a failed
// drop leaves bookkeeping in place for a later retry.
func (m *CopyManager) remove(ctx context.Context, c model.DatabaseCopy) error {
	if err := m.admin.dropDatabase(ctx, c.CopyName); err != nil {
		return fmt.Errorf("drop copy %s: %w", c.CopyName, err)
	}
	if err := m.repo.DeleteCopy(ctx, c.CopyName); err != nil {
		return fmt.Errorf("delete copy record %s: %w", c.CopyName, err)
	}
	return nil
}

// dropDetached drops a clone that never became Active. It runs on its own
// context because the request context may already be done.
func (m *CopyManager) dropDetached(name string, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.admin.dropDatabase(ctx, name); err != nil {
		log.Error().Err(err).Msg("failed to drop orphaned clone")
	}
}
