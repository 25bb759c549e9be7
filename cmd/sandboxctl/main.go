package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	mw "github.com/edvin/sqlsandbox/internal/api/middleware"
	"github.com/edvin/sqlsandbox/internal/config"
	"github.com/edvin/sqlsandbox/internal/core"
	"github.com/edvin/sqlsandbox/internal/db"
	"github.com/edvin/sqlsandbox/internal/logging"
	"github.com/edvin/sqlsandbox/internal/sandbox"
	"github.com/edvin/sqlsandbox/internal/sandboxctl"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "seed":
		fs := flag.NewFlagSet("seed", flag.ExitOnError)
		file := fs.String("f", "", "Path to seed manifest YAML file (required)")
		timeout := fs.Duration("timeout", 30*time.Minute, "Timeout for the whole seed run")
		fs.Parse(os.Args[2:])

		if *file == "" {
			fmt.Fprintln(os.Stderr, "Error: -f flag is required")
			fs.Usage()
			os.Exit(1)
		}

		cfg, err := sandboxctl.LoadSeedConfig(*file)
		if err != nil {
			fail(err)
		}
		run(*timeout, func(ctx context.Context, sb *sandbox.Sandbox, repo *core.Repository) error {
			return sandboxctl.Seed(ctx, cfg, filepath.Dir(*file), sb, repo, os.Stdout)
		})

	case "import":
		fs := flag.NewFlagSet("import", flag.ExitOnError)
		file := fs.String("f", "", "Path to SQL script starting with CREATE DATABASE (required)")
		owner := fs.Int("owner", 0, "Owner user id (required)")
		timeout := fs.Duration("timeout", 10*time.Minute, "Import timeout")
		fs.Parse(os.Args[2:])

		if *file == "" || *owner <= 0 {
			fmt.Fprintln(os.Stderr, "Error: -f and -owner are required")
			fs.Usage()
			os.Exit(1)
		}

		run(*timeout, func(ctx context.Context, sb *sandbox.Sandbox, _ *core.Repository) error {
			return sandboxctl.Import(ctx, *file, *owner, sb, os.Stdout)
		})

	case "sweep":
		fs := flag.NewFlagSet("sweep", flag.ExitOnError)
		timeout := fs.Duration("timeout", 10*time.Minute, "Sweep timeout")
		fs.Parse(os.Args[2:])

		run(*timeout, func(ctx context.Context, sb *sandbox.Sandbox, _ *core.Repository) error {
			n, err := sb.SweepExpiredCopies(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d expired copies\n", n)
			return nil
		})

	case "migrate":
		cfg := loadConfig()
		if err := db.RunMigrations(cfg.CoreDatabaseURL); err != nil {
			fail(err)
		}
		fmt.Println("Migrations applied")

	case "token":
		fs := flag.NewFlagSet("token", flag.ExitOnError)
		user := fs.Int("user", 0, "User id to issue the token for (required)")
		ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
		fs.Parse(os.Args[2:])

		if *user <= 0 {
			fmt.Fprintln(os.Stderr, "Error: -user is required")
			fs.Usage()
			os.Exit(1)
		}
		secret := os.Getenv("JWT_SECRET")
		if len(secret) < 32 {
			fail(fmt.Errorf("JWT_SECRET must be set to at least 32 bytes"))
		}
		token, err := mw.IssueToken([]byte(secret), *user, *ttl)
		if err != nil {
			fail(err)
		}
		fmt.Println(token)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fail(fmt.Errorf("load config: %w", err))
	}
	if err := cfg.Validate("sandboxctl"); err != nil {
		fail(fmt.Errorf("invalid config: %w", err))
	}
	return cfg
}

// run connects to both databases and calls fn with a ready Sandbox.
func run(timeout time.Duration, fn func(ctx context.Context, sb *sandbox.Sandbox, repo *core.Repository) error) {
	cfg := loadConfig()
	logger := logging.NewLogger(cfg).Level(zerolog.WarnLevel)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL, cfg.CoreMaxConns)
	if err != nil {
		fail(fmt.Errorf("connect to core database: %w", err))
	}
	defer pool.Close()

	driver, err := db.NewDriver(cfg.SandboxDatabaseURL)
	if err != nil {
		fail(err)
	}

	repo := core.NewRepository(pool)
	sb := sandbox.New(repo, driver, logger, sandbox.Options{
		MaintenanceDatabase: cfg.MaintenanceDatabase,
		CopyTTL:             cfg.CopyTTL,
		ImportTimeout:       timeout,
	}, nil)

	if err := fn(ctx, sb, repo); err != nil {
		pool.Close()
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage:
  sandboxctl seed -f <manifest.yaml>          Import every database listed in a seed manifest
  sandboxctl import -f <script.sql> -owner N  Import one script owned by user N
  sandboxctl sweep                            Remove expired database copies now
  sandboxctl migrate                          Apply bookkeeping database migrations
  sandboxctl token -user N [-ttl 24h]         Print an API token for user N (reads JWT_SECRET)`)
}
