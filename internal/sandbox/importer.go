package sandbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/edvin/sqlsandbox/internal/model"
)

// createDatabaseRe extracts the target of the leading CREATE DATABASE
// statement of an import script. Options after the name are ignored.
var createDatabaseRe = regexp.MustCompile(`(?is)^CREATE\s+DATABASE\s+(?:IF\s+NOT\s+EXISTS\s+)?"?([^\s;"]+)"?`)

// ImportScript creates a logical database from a script whose first
// statement is CREATE DATABASE. The remaining statements run in one
// transaction; on failure nothing is registered and the new database is
// dropped. Statement indices in errors refer to positions in the script.
func (s *Sandbox) ImportScript(ctx context.Context, script string, ownerID int) (string, error) {
	stmts, err := SplitStatements(script)
	if err != nil {
		return "", err
	}

	m := createDatabaseRe.FindStringSubmatch(stripLeadingComments(stmts[0]))
	if m == nil {
		return "", newError(KindMissingCreateStatement, "the first statement must be CREATE DATABASE <name>")
	}
	name := m[1]

	if err := s.create(ctx, name, stmts[1:], ownerID, 2); err != nil {
		return "", err
	}
	return normalizeName(name), nil
}

// stripLeadingComments drops whitespace and -- or /* */ comments in front of
// the first keyword of stmt.
func stripLeadingComments(stmt string) string {
	i := 0
	for i < len(stmt) {
		switch {
		case unicode.IsSpace(rune(stmt[i])):
			i++
		case strings.HasPrefix(stmt[i:], "--"):
			i = skipLineComment(stmt, i)
		case strings.HasPrefix(stmt[i:], "/*"):
			i = skipBlockComment(stmt, i)
		default:
			return stmt[i:]
		}
	}
	return ""
}

// CreateDatabase creates a logical database named name and populates it
// from script, which must not itself contain CREATE DATABASE.
func (s *Sandbox) CreateDatabase(ctx context.Context, name, script string, ownerID int) error {
	stmts, err := SplitStatements(script)
	if err != nil {
		return err
	}
	return s.create(ctx, name, stmts, ownerID, 1)
}

func (s *Sandbox) create(ctx context.Context, name string, stmts []string, ownerID, firstIndex int) error {
	if err := ValidateDatabaseName(name); err != nil {
		return err
	}
	name = normalizeName(name)

	if _, err := s.repo.GetLogicalDatabase(ctx, name); err == nil {
		return newError(KindUniqueViolation, "database %q already exists", name)
	} else if !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("get logical database %s: %w", name, err)
	}

	for i, stmt := range stmts {
		words := leadingWords(stmt, 4)
		if len(words) > 1 && ddlObject(words) == "DATABASE" {
			return &Error{
				Kind:      KindForbiddenCommand,
				Message:   fmt.Sprintf("%s is only allowed as the first statement", commandLabel(words)),
				Index:     firstIndex + i,
				Statement: preview(stmt),
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.ImportTimeout)
	defer cancel()

	log := s.logger.With().Str("database", name).Int("owner", ownerID).Logger()

	if err := s.admin.createDatabase(ctx, name); err != nil {
		return err
	}

	if len(stmts) > 0 {
		if err := s.engine.executeScript(ctx, stmts, name, firstIndex); err != nil {
			log.Warn().Err(err).Msg("import script failed, dropping database")
			s.dropDetached(name)
			return err
		}
	}

	owner := ownerID
	record := &model.LogicalDatabase{Name: name, OwnerID: &owner, CreatedAt: s.opts.Clock()}
	if err := s.repo.CreateLogicalDatabase(ctx, record); err != nil {
		s.dropDetached(name)
		return fmt.Errorf("register logical database %s: %w", name, err)
	}

	log.Info().Int("statements", len(stmts)+1).Msg("logical database created")
	return nil
}

func (s *Sandbox) dropDetached(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.admin.dropDatabase(ctx, name); err != nil {
		s.logger.Error().Err(err).Str("database", name).Msg("failed to drop database after failed import")
	}
}
