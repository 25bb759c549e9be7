package sandbox

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/sqlsandbox/internal/platform"
)

// databaseNameRe is the identifier rule for logical database names. Names
// that pass it are safe to embed as SQL literals.
var databaseNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

const (
	minNameLen = 3
	maxNameLen = 63
)

// ValidateDatabaseName checks a logical database name.
func ValidateDatabaseName(name string) error {
	if len(name) < minNameLen || len(name) > maxNameLen {
		return newError(KindInvalidName, "database name %q must be %d-%d characters", name, minNameLen, maxNameLen)
	}
	if !databaseNameRe.MatchString(name) {
		return newError(KindInvalidName, "database name %q must start with a letter and contain only letters, digits and underscores", name)
	}
	return nil
}

// normalizeName folds a database name the way PostgreSQL folds unquoted
// identifiers.
func normalizeName(name string) string {
	return strings.ToLower(name)
}

// copyName builds <logical>_c<requester>_<unixmillis>_<rand>, truncating the
// logical part so the result fits PostgreSQL's 63-byte identifier limit.
func copyName(logical string, requesterID int, now time.Time) string {
	suffix := fmt.Sprintf("_c%d_%d_%s", requesterID, now.UnixMilli(), platform.RandomString(4))
	if room := maxNameLen - len(suffix); len(logical) > room {
		logical = logical[:room]
	}
	return logical + suffix
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// admin runs server-level DDL through the maintenance database.
type admin struct {
	driver     Driver
	database   string
	classifier *Classifier
}

func (a *admin) do(ctx context.Context, fn func(q Querier) error) error {
	conn, err := a.driver.Connect(ctx, a.database)
	if err != nil {
		return a.classifier.Classify(ctx, err)
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		_ = conn.Close(cctx)
	}()

	if err := fn(conn); err != nil {
		return a.classifier.Classify(ctx, err)
	}
	return nil
}

func (a *admin) createDatabase(ctx context.Context, name string) error {
	return a.do(ctx, func(q Querier) error {
		_, err := q.Exec(ctx, "CREATE DATABASE "+quoteIdent(name))
		return err
	})
}

// cloneDatabase copies source into a new database. PostgreSQL refuses to use
// a template with open sessions, so those are terminated first.
func (a *admin) cloneDatabase(ctx context.Context, source, target string) error {
	return a.do(ctx, func(q Querier) error {
		if err := terminateSessions(ctx, q, source); err != nil {
			return fmt.Errorf("terminate sessions on %s: %w", source, err)
		}
		_, err := q.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s TEMPLATE %s", quoteIdent(target), quoteIdent(source)))
		return err
	})
}

func (a *admin) dropDatabase(ctx context.Context, name string) error {
	return a.do(ctx, func(q Querier) error {
		_, err := q.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", quoteIdent(name)))
		return err
	})
}

func terminateSessions(ctx context.Context, q Querier, database string) error {
	_, err := q.Exec(ctx, fmt.Sprintf(
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = %s AND pid <> pg_backend_pid()",
		quoteLiteral(database)))
	return err
}
