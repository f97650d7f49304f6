package journal

import (
	"context"
	"time"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
)

// Nop is used when no database is configured.
type Nop struct{}

var _ Repository = Nop{}

func (Nop) Record(context.Context, domain.JournalEntry) error {
	return nil
}

func (Nop) CleanupOldRecords(context.Context, time.Duration) (int64, error) {
	return 0, nil
}
