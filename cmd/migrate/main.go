// Утилита управления миграциями схемы storefront.
//
// Применение, откат и статус работают через тот же встроенный набор
// миграций, что и основной сервис.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

type migrateConfig struct {
	command string
	steps   int
	dsn     string
	timeout time.Duration
}

func parseMigrateFlags() (migrateConfig, error) {
	var cfg migrateConfig

	flag.StringVar(&cfg.command, "direction", "up", "migration command: up|down|status")
	flag.IntVar(&cfg.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&cfg.dsn, "dsn", "", "PostgreSQL DSN (fallback: STOREFRONT_POSTGRES_DSN)")
	flag.DurationVar(&cfg.timeout, "timeout", 30*time.Second, "total timeout for the migration run")
	flag.Parse()

	cfg.command = strings.ToLower(strings.TrimSpace(cfg.command))

	if strings.TrimSpace(cfg.dsn) == "" {
		cfg.dsn = strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_DSN"))
	}
	if cfg.dsn == "" {
		return cfg, fmt.Errorf("STOREFRONT_POSTGRES_DSN (or -dsn) is required")
	}
	if cfg.timeout <= 0 {
		return cfg, fmt.Errorf("timeout must be positive, got %s", cfg.timeout)
	}

	return cfg, nil
}

func main() {
	cfg, err := parseMigrateFlags()
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	store, err := postgres.Open(ctx, cfg.dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	if err := run(ctx, store, cfg); err != nil {
		fail("%v", err)
	}
}

func run(ctx context.Context, store *postgres.Store, cfg migrateConfig) error {
	switch cfg.command {
	case "up":
		if err := store.MigrateUp(ctx, cfg.steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		return reportStatus(ctx, store, "migrate up ok")
	case "down":
		steps := cfg.steps
		if steps <= 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		return reportStatus(ctx, store, "migrate down ok")
	case "status":
		return reportStatus(ctx, store, "migration status")
	default:
		return fmt.Errorf("unsupported direction: %s (use up|down|status)", cfg.command)
	}
}

func reportStatus(ctx context.Context, store *postgres.Store, prefix string) error {
	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	fmt.Printf("%s: version=%d applied=%d\n", prefix, version, count)
	return nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
