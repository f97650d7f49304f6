package journal

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/internal/repositories"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
)

const table = "extraction_journal"

type Pgx struct {
	pg     *pgxpool.Pool
	logger logger.Logger
}

func NewPgx(pg *pgxpool.Pool, logger logger.Logger) *Pgx {
	return &Pgx{
		pg:     pg,
		logger: logger.WithComponent("JournalRepo"),
	}
}

var _ Repository = (*Pgx)(nil)

func (p *Pgx) Record(ctx context.Context, entry domain.JournalEntry) error {
	query, args, err := insertQuery(entry)
	if err != nil {
		return repositories.ErrBadQuery
	}

	_, err = p.pg.Exec(ctx, query, args...)
	return err
}

func (p *Pgx) CleanupOldRecords(ctx context.Context, olderThan time.Duration) (int64, error) {
	query, args, err := cleanupQuery(time.Now().Add(-olderThan))
	if err != nil {
		return 0, repositories.ErrBadQuery
	}

	result, err := p.pg.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}

func insertQuery(entry domain.JournalEntry) (string, []any, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	return repositories.SqBuilder.
		Insert(table).
		Columns("id", "identity", "platform", "source_url", "method", "outcome", "item_count", "detail", "duration_ms", "created_at").
		Values(
			entry.ID,
			entry.Identity,
			string(entry.Platform),
			entry.SourceURL,
			string(entry.Method),
			string(entry.Outcome),
			entry.ItemCount,
			entry.Detail,
			entry.Duration.Milliseconds(),
			entry.CreatedAt,
		).
		ToSql()
}

func cleanupQuery(cutoff time.Time) (string, []any, error) {
	return repositories.SqBuilder.
		Delete(table).
		Where(sq.Lt{"created_at": cutoff}).
		ToSql()
}
