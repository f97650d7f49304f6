package platforms

import (
	"context"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/internal/extractor"
)

type YouTube struct {
	extractor.Base
}

func NewYouTube(deps extractor.Deps) *YouTube {
	return &YouTube{Base: extractor.Base{Deps: deps}}
}

func (y *YouTube) Platform() domain.Platform {
	return domain.PlatformYouTube
}

// Primary asks the downloader for the best direct format url and leaves the
// download to the fetcher.
func (y *YouTube) Primary(ctx context.Context, url string) (*domain.ScrapedMedia, error) {
	if y.Downloader == nil {
		return nil, extractor.ErrNotSupported
	}

	info, err := y.Downloader.Info(ctx, url, y.DownloaderOptions())
	if err != nil {
		return nil, err
	}
	if info.URL == "" {
		return nil, domain.NewFailure(domain.FailureParse, "no playable format")
	}

	return &domain.ScrapedMedia{
		Caption:   info.Title,
		Author:    info.Uploader,
		SourceURL: url,
		Items: []*domain.MediaItem{{
			Kind:      domain.KindVideo,
			RemoteURL: info.URL,
			Width:     info.Width,
			Height:    info.Height,
			Duration:  info.Duration,
		}},
	}, nil
}

func (y *YouTube) Tertiary(context.Context, string) (*domain.ScrapedMedia, error) {
	return nil, extractor.ErrNotSupported
}
