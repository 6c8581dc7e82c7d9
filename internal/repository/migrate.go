package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/ups-tracking/ups-api/pkg/logger"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies every pending migration embedded in the binary.
func Migrate(ctx context.Context, db *sql.DB, log logger.Logger) error {
	const op = "repository.Migrate"

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("%s: sub fs: %w", op, err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("%s: new provider: %w", op, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("%s: up: %w", op, err)
	}

	for _, r := range results {
		log.LogAttrs(ctx, logger.InfoLevel, "migration applied",
			logger.String("op", op),
			logger.Int64("version", r.Source.Version),
			logger.String("duration", r.Duration.String()),
		)
	}

	return nil
}
