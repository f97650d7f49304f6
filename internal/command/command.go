package command

import (
	"context"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
)

type Client interface {
	HandleCommand(ctx context.Context) error
}

//go:generate mockgen -source=command.go -destination=mocks/mock.go

// Processor turns one supported link into a deliverable result.
type Processor interface {
	Process(ctx context.Context, url string, identity int64) (*domain.ScrapedMedia, error)
}
