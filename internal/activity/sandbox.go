package activity

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
)

// CopySweeper removes expired database copies. *sandbox.Sandbox satisfies
// this interface.
type CopySweeper interface {
	SweepExpiredCopies(ctx context.Context) (int, error)
}

// Copies contains activities that manage per-requester database copies.
type Copies struct {
	sweeper CopySweeper
}

// NewCopies creates a new Copies activity struct.
func NewCopies(sweeper CopySweeper) *Copies {
	return &Copies{sweeper: sweeper}
}

// SweepExpiredCopies drops every copy whose lease has run out and returns how
// many were removed. Individual drop failures are left for the next run.
func (a *Copies) SweepExpiredCopies(ctx context.Context) (int, error) {
	n, err := a.sweeper.SweepExpiredCopies(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep expired copies: %w", err)
	}
	activity.GetLogger(ctx).Info("swept expired copies", "deleted", n)
	return n, nil
}
