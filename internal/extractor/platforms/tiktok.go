package platforms

import (
	"context"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/internal/extractor"
)

// TikTok CDN urls are signed, so only the downloader can fetch them.
type TikTok struct {
	extractor.Base
}

func NewTikTok(deps extractor.Deps) *TikTok {
	return &TikTok{Base: extractor.Base{Deps: deps, Signed: true}}
}

func (t *TikTok) Platform() domain.Platform {
	return domain.PlatformTikTok
}

func (t *TikTok) Tertiary(context.Context, string) (*domain.ScrapedMedia, error) {
	return nil, extractor.ErrNotSupported
}
