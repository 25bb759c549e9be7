package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServiceName string
	LogLevel    string

	// CoreDatabaseURL points at the bookkeeping database holding logical
	// databases, copies and the audit trail.
	CoreDatabaseURL string
	CoreMaxConns    int32
	// SandboxDatabaseURL carries the credentials for the server hosting
	// source databases and copies. Its database name is replaced per call.
	SandboxDatabaseURL  string
	MaintenanceDatabase string

	CopyTTL             time.Duration
	ReadTimeout         time.Duration
	ManipulationTimeout time.Duration
	ImportTimeout       time.Duration
	MaxUploadBytes      int64

	HTTPListenAddr string
	MetricsAddr    string
	JWTSecret      string

	TemporalAddress       string
	TemporalNamespace     string
	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string
	SweepCron             string

	AuditLogRetentionDays int
}

func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		ServiceName:           getEnv("SERVICE_NAME", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		CoreDatabaseURL:       getEnv("CORE_DATABASE_URL", ""),
		SandboxDatabaseURL:    getEnv("SANDBOX_DATABASE_URL", ""),
		MaintenanceDatabase:   getEnv("SANDBOX_MAINTENANCE_DB", "postgres"),
		HTTPListenAddr:        getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:           getEnv("METRICS_ADDR", ""),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		TemporalAddress:       getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalNamespace:     getEnv("TEMPORAL_NAMESPACE", "default"),
		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
		SweepCron:             getEnv("SWEEP_CRON", "*/15 * * * *"),
	}

	cfg.CopyTTL = getDuration("COPY_TTL", 4*time.Hour, &errs)
	cfg.ReadTimeout = getDuration("READ_TIMEOUT", 10*time.Second, &errs)
	cfg.ManipulationTimeout = getDuration("MANIPULATION_TIMEOUT", 30*time.Second, &errs)
	cfg.ImportTimeout = getDuration("IMPORT_TIMEOUT", 5*time.Minute, &errs)
	cfg.MaxUploadBytes = getInt("MAX_UPLOAD_BYTES", 10<<20, &errs)
	cfg.CoreMaxConns = int32(getInt("CORE_MAX_CONNS", 0, &errs))
	cfg.AuditLogRetentionDays = int(getInt("AUDIT_LOG_RETENTION_DAYS", 90, &errs))

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks the settings required by the given binary: "sandbox-api",
// "worker" or "sandboxctl".
func (c *Config) Validate(role string) error {
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	require("CORE_DATABASE_URL", c.CoreDatabaseURL)
	require("SANDBOX_DATABASE_URL", c.SandboxDatabaseURL)

	switch role {
	case "sandbox-api":
		require("HTTP_LISTEN_ADDR", c.HTTPListenAddr)
		require("JWT_SECRET", c.JWTSecret)
	case "worker":
		require("TEMPORAL_ADDRESS", c.TemporalAddress)
		require("SWEEP_CRON", c.SweepCron)
	case "sandboxctl":
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required config for %s: %v", role, missing))
	}
	if (c.TemporalTLSCert == "") != (c.TemporalTLSKey == "") {
		errs = append(errs, errors.New("TEMPORAL_TLS_CERT and TEMPORAL_TLS_KEY must both be set"))
	}
	if role == "sandbox-api" && c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}

func getInt(key string, fallback int64, errs *[]error) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return n
}
