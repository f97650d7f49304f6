package extractor

import (
	"context"
	"net/http"

	"github.com/orgball2608/media-extractor-bot/internal/browser"
	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/internal/fetcher"
	"github.com/orgball2608/media-extractor-bot/internal/ytdlp"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
)

// Resolver downloads pending items on the shared fetch pool.
type Resolver interface {
	FetchAll(ctx context.Context, items []*domain.MediaItem) fetcher.Result
}

// Deps are the collaborators shared by every variant.
type Deps struct {
	Downloader  ytdlp.Downloader
	Browser     browser.Backend
	Resolver    Resolver
	HTTP        *http.Client
	Logger      logger.Logger
	MaxFileSize int64
}

// Base supplies the default tiers. Variants embed it and override what they need.
type Base struct {
	Deps

	// CookiesFile is handed to the downloader and the browser unmodified.
	CookiesFile string
	// ExtraArgs are appended to every downloader invocation.
	ExtraArgs []string
	// Signed marks platforms whose media urls cannot be fetched later.
	Signed bool
}

func (b *Base) Primary(context.Context, string) (*domain.ScrapedMedia, error) {
	return nil, ErrNotSupported
}

// Secondary downloads the media with the universal downloader.
func (b *Base) Secondary(ctx context.Context, url string) (*domain.ScrapedMedia, error) {
	return b.DownloadMedia(ctx, url, b.DownloaderOptions())
}

// Tertiary renders the page and collects its Open Graph and <video> media.
func (b *Base) Tertiary(ctx context.Context, url string) (*domain.ScrapedMedia, error) {
	page, err := b.RenderPage(ctx, url, browser.RenderOptions{})
	if err != nil {
		return nil, err
	}

	res := &domain.ScrapedMedia{
		Caption:   page.Description,
		SourceURL: url,
	}
	if res.Caption == "" {
		res.Caption = page.Title
	}

	if len(page.Videos) > 0 {
		for _, v := range page.Videos {
			res.Items = append(res.Items, &domain.MediaItem{Kind: domain.KindVideo, RemoteURL: v})
		}
	} else {
		for _, img := range page.Images {
			res.Items = append(res.Items, &domain.MediaItem{Kind: domain.KindImage, RemoteURL: img})
		}
	}
	res.Truncate(domain.MaxItems)

	if b.Signed && len(res.Items) > 0 {
		res.Items = b.ResolveAll(ctx, res.Items)
		if len(res.Items) == 0 {
			return nil, domain.NewFailure(domain.FailureNetwork, "signed media could not be fetched")
		}
	}
	return res, nil
}

func (b *Base) SignedMedia() bool {
	return b.Signed
}

func (b *Base) DownloaderOptions() ytdlp.Options {
	return ytdlp.Options{
		CookiesFile: b.CookiesFile,
		ExtraArgs:   b.ExtraArgs,
		MaxFileSize: b.MaxFileSize,
	}
}

// DownloadMedia runs the downloader and wraps the file as a single resolved item.
func (b *Base) DownloadMedia(ctx context.Context, url string, opts ytdlp.Options) (*domain.ScrapedMedia, error) {
	if b.Downloader == nil {
		return nil, ErrNotSupported
	}

	dl, err := b.Downloader.Download(ctx, url, opts)
	if err != nil {
		return nil, err
	}

	kind := domain.KindImage
	if dl.IsVideo() {
		kind = domain.KindVideo
	}

	caption := dl.Description
	if caption == "" {
		caption = dl.Title
	}

	return &domain.ScrapedMedia{
		Caption:   caption,
		Author:    dl.Uploader,
		SourceURL: url,
		Items: []*domain.MediaItem{{
			Kind:     kind,
			Data:     dl.Data,
			Width:    dl.Width,
			Height:   dl.Height,
			Duration: dl.Duration,
		}},
	}, nil
}

// RenderPage renders url with the platform cookies and parses the result.
func (b *Base) RenderPage(ctx context.Context, url string, opts browser.RenderOptions) (*browser.Page, error) {
	if b.Browser == nil {
		return nil, ErrNotSupported
	}

	if b.CookiesFile != "" && len(opts.Cookies) == 0 {
		cookies, err := browser.LoadCookies(b.CookiesFile)
		if err != nil {
			b.Logger.Warn("Could not load cookies for browser", "error", err)
		} else {
			opts.Cookies = cookies
		}
	}

	html, err := b.Browser.Render(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	return browser.ParsePage(html, url)
}

// ResolveAll fetches bytes for pending items right away and drops the ones that fail.
// Items download in parallel and keep their order.
func (b *Base) ResolveAll(ctx context.Context, items []*domain.MediaItem) []*domain.MediaItem {
	if b.Resolver == nil {
		return items
	}

	res := b.Resolver.FetchAll(ctx, items)
	for _, f := range res.Failures {
		b.Logger.Debug("Signed media could not be fetched", "url", f.URL, "kind", f.Kind, "detail", f.Detail)
	}
	return res.Resolved
}
