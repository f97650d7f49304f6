package domain

import (
	"time"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeDelivered           Outcome = "delivered"
	OutcomePartial             Outcome = "partial"
	OutcomeRateLimited         Outcome = "rate-limited"
	OutcomeUnsupportedPlatform Outcome = "unsupported-platform"
	OutcomeExtractionFailed    Outcome = "extraction-failed"
	OutcomeDeliveryFailed      Outcome = "delivery-failed"
)

// JournalEntry is one processed request.
type JournalEntry struct {
	ID        uuid.UUID
	Identity  int64
	Platform  Platform
	SourceURL string
	Method    Method
	Outcome   Outcome
	ItemCount int
	Detail    string
	Duration  time.Duration
	CreatedAt time.Time
}
