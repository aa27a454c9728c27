package main

import (
	"InsMarket/internal/config"
	"InsMarket/internal/observability"
	"InsMarket/internal/persistence"
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <up|down|status>")
		fmt.Println("  up     - apply all pending migrations")
		fmt.Println("  down   - roll back the last migration")
		fmt.Println("  status - list applied migrations")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  INSMARKET_STORE_DRIVER - sqlite or postgres (default: sqlite)")
		fmt.Println("  INSMARKET_STORE_DSN    - connection string or sqlite file (required)")
		os.Exit(1)
	}

	logger := observability.NewLogger("migrate")

	driver := config.EnvOrDefault("INSMARKET_STORE_DRIVER", persistence.DriverSQLite)
	dsn := os.Getenv("INSMARKET_STORE_DSN")
	if dsn == "" {
		logger.Fatal().Msg("INSMARKET_STORE_DSN is required")
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	ctx := context.Background()
	migrator, err := persistence.NewMigrator(db, driver, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("new migrator")
	}

	switch os.Args[1] {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migrate up")
		}
		logger.Info().Msg("all migrations applied")

	case "down":
		if err := migrator.Down(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migrate down")
		}
		logger.Info().Msg("last migration rolled back")

	case "status":
		versions, err := migrator.Applied(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate status")
		}
		for _, v := range versions {
			fmt.Println(v)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s (use 'up', 'down' or 'status')\n", os.Args[1])
		os.Exit(1)
	}
}
