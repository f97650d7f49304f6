package journal

import (
	"context"
	"fmt"

	"github.com/orgball2608/media-extractor-bot/internal/db"
	"github.com/orgball2608/media-extractor-bot/pkg/config"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
	"github.com/orgball2608/media-extractor-bot/pkg/pgx"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Logger logger.Logger
}

// New returns the Postgres journal, or Nop when Postgres is disabled.
func New(opts Opts) (Repository, error) {
	if !opts.Config.Postgres.Enabled {
		opts.Logger.Info("Postgres disabled, extraction journal is not persisted")
		return Nop{}, nil
	}

	// Registered before the pool so the schema exists by the time it is pinged.
	opts.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.Migrate(ctx, opts.Config); err != nil {
				return fmt.Errorf("failed to migrate journal schema: %w", err)
			}
			return nil
		},
	})

	pool, err := pgx.New(pgx.Opts{LC: opts.LC, Logger: opts.Logger, Config: opts.Config})
	if err != nil {
		return nil, err
	}
	return NewPgx(pool, opts.Logger), nil
}

var Module = fx.Module("journal_repository",
	fx.Provide(New),
)
