package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upExtractionJournal, downExtractionJournal)
}

func upExtractionJournal(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE extraction_journal (
			id          UUID PRIMARY KEY,
			identity    BIGINT NOT NULL,
			platform    VARCHAR(32) NOT NULL DEFAULT '',
			source_url  TEXT NOT NULL,
			method      VARCHAR(32) NOT NULL DEFAULT '',
			outcome     VARCHAR(32) NOT NULL,
			item_count  INTEGER NOT NULL DEFAULT 0,
			detail      TEXT NOT NULL DEFAULT '',
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
		CREATE INDEX extraction_journal_created_at_idx ON extraction_journal (created_at);
		CREATE INDEX extraction_journal_identity_idx ON extraction_journal (identity, created_at DESC);
	`)
	return err
}

func downExtractionJournal(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE extraction_journal;`)
	return err
}
