package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/edvin/sqlsandbox/internal/model"
)

// Grant is the capability under which a caller may use a logical database.
// It is one of OwnerGrant or WorksheetGrant.
type Grant interface {
	Database() string
	isGrant()
}

// OwnerGrant is held by the recorded owner of a database.
type OwnerGrant struct {
	DatabaseName string
	OwnerID      int
}

func (g OwnerGrant) Database() string { return g.DatabaseName }
func (OwnerGrant) isGrant()           {}

// WorksheetGrant is held by any caller once a database is used by at least
// one worksheet.
type WorksheetGrant struct {
	DatabaseName string
	Worksheets   int
}

func (g WorksheetGrant) Database() string { return g.DatabaseName }
func (WorksheetGrant) isGrant()           {}

// AccessPolicy decides whether a caller holds a grant on db. It returns a
// nil Grant when the policy does not apply.
type AccessPolicy interface {
	Grant(ctx context.Context, db *model.LogicalDatabase, callerID int) (Grant, error)
}

// OwnerPolicy grants access to the recorded owner.
type OwnerPolicy struct{}

func (OwnerPolicy) Grant(_ context.Context, db *model.LogicalDatabase, callerID int) (Grant, error) {
	if db.OwnedBy(callerID) {
		return OwnerGrant{DatabaseName: db.Name, OwnerID: callerID}, nil
	}
	return nil, nil
}

// WorksheetPolicy grants access to databases referenced by any worksheet.
type WorksheetPolicy struct {
	Repo Repository
}

func (p WorksheetPolicy) Grant(ctx context.Context, db *model.LogicalDatabase, _ int) (Grant, error) {
	n, err := p.Repo.CountWorksheetReferences(ctx, db.Name)
	if err != nil {
		return nil, fmt.Errorf("count worksheet references for %s: %w", db.Name, err)
	}
	if n > 0 {
		return WorksheetGrant{DatabaseName: db.Name, Worksheets: n}, nil
	}
	return nil, nil
}

// Gate evaluates access policies in order; the first grant wins. A caller
// without a grant sees NotFound so private databases stay invisible.
type Gate struct {
	repo     Repository
	policies []AccessPolicy
}

// NewGate creates a Gate. Without explicit policies the owner and worksheet
// policies apply.
func NewGate(repo Repository, policies ...AccessPolicy) *Gate {
	if len(policies) == 0 {
		policies = []AccessPolicy{OwnerPolicy{}, WorksheetPolicy{Repo: repo}}
	}
	return &Gate{repo: repo, policies: policies}
}

// Authorize resolves the caller's grant on the named database.
func (g *Gate) Authorize(ctx context.Context, name string, callerID int) (Grant, *model.LogicalDatabase, error) {
	if ValidateDatabaseName(name) != nil {
		return nil, nil, notFound(name)
	}
	db, err := g.repo.GetLogicalDatabase(ctx, normalizeName(name))
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil, notFound(name)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get logical database %s: %w", name, err)
	}

	grant, err := g.grant(ctx, db, callerID)
	if err != nil {
		return nil, nil, err
	}
	if grant == nil {
		return nil, nil, notFound(name)
	}
	return grant, db, nil
}

func (g *Gate) grant(ctx context.Context, db *model.LogicalDatabase, callerID int) (Grant, error) {
	for _, p := range g.policies {
		grant, err := p.Grant(ctx, db, callerID)
		if err != nil {
			return nil, err
		}
		if grant != nil {
			return grant, nil
		}
	}
	return nil, nil
}

// CheckAccess reports whether callerID holds any grant on the database.
func (g *Gate) CheckAccess(ctx context.Context, name string, callerID int) (bool, error) {
	_, _, err := g.Authorize(ctx, name, callerID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func notFound(name string) error {
	return newError(KindNotFound, "database %q not found", name)
}
