package journal

import (
	"context"
	"time"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=journal.go -destination=mocks/mock.go
type Repository interface {
	// Record stores the outcome of one processed link
	Record(ctx context.Context, entry domain.JournalEntry) error

	// CleanupOldRecords deletes entries older than the given duration
	CleanupOldRecords(ctx context.Context, olderThan time.Duration) (int64, error)
}
