package sandboxctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/edvin/sqlsandbox/internal/sandbox"
)

// Importer creates logical databases. *sandbox.Sandbox satisfies it.
type Importer interface {
	ImportScript(ctx context.Context, script string, ownerID int) (string, error)
	CreateDatabase(ctx context.Context, name, script string, ownerID int) error
}

// WorksheetStore records worksheets. *core.Repository satisfies it.
type WorksheetStore interface {
	AddWorksheet(ctx context.Context, title, database string, ownerID int) error
}

// LoadSeedConfig reads and checks a seed manifest.
func LoadSeedConfig(path string) (*SeedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg SeedConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	for i, def := range cfg.Databases {
		if def.Script == "" {
			return nil, fmt.Errorf("databases[%d]: script is required", i)
		}
		if def.Owner <= 0 {
			return nil, fmt.Errorf("databases[%d]: owner must be a positive user id", i)
		}
	}
	return &cfg, nil
}

// Seed provisions every database in cfg. Script paths are resolved relative
// to baseDir. Databases that already exist are skipped, so a manifest can be
// applied repeatedly.
func Seed(ctx context.Context, cfg *SeedConfig, baseDir string, imp Importer, worksheets WorksheetStore, out io.Writer) error {
	for _, def := range cfg.Databases {
		path := def.Script
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		script, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read script %s: %w", def.Script, err)
		}

		name, err := importOne(ctx, imp, def, string(script))
		if sandbox.KindOf(err) == sandbox.KindUniqueViolation {
			fmt.Fprintf(out, "Skipping %s: database already exists\n", def.Script)
			continue
		}
		if err != nil {
			return fmt.Errorf("import %s: %w", def.Script, err)
		}
		fmt.Fprintf(out, "Database %q created (owner %d)\n", name, def.Owner)

		for _, ws := range def.Worksheets {
			owner := ws.Owner
			if owner == 0 {
				owner = def.Owner
			}
			if err := worksheets.AddWorksheet(ctx, ws.Title, name, owner); err != nil {
				return fmt.Errorf("add worksheet %q: %w", ws.Title, err)
			}
			fmt.Fprintf(out, "  Worksheet %q\n", ws.Title)
		}
	}
	return nil
}

func importOne(ctx context.Context, imp Importer, def DatabaseDef, script string) (string, error) {
	if def.Name == "" {
		return imp.ImportScript(ctx, script, def.Owner)
	}
	if err := imp.CreateDatabase(ctx, def.Name, script, def.Owner); err != nil {
		return "", err
	}
	return strings.ToLower(def.Name), nil
}

// Import runs a single script file through ImportScript.
func Import(ctx context.Context, path string, ownerID int, imp Importer, out io.Writer) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	name, err := imp.ImportScript(ctx, string(script), ownerID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Database %q created (owner %d)\n", name, ownerID)
	return nil
}
