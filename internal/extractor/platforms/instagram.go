package platforms

import (
	"context"
	"regexp"
	"strings"

	"github.com/orgball2608/media-extractor-bot/internal/browser"
	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/internal/extractor"
	"github.com/orgball2608/media-extractor-bot/internal/instagram"
)

const (
	instagramSite = "https://www.instagram.com"

	// Embed pages also link avatars and sprites; real photos are larger.
	instagramMinImageBytes = 5000
)

var instagramCDNRe = regexp.MustCompile(`(?i)https?://(?:scontent|instagram)[^"'\\>\s]+\.(?:jpg|jpeg|png|webp)[^"'\\>\s]*`)

type Instagram struct {
	extractor.Base

	Client instagram.Client
	// EmbedBase is where /p/{shortcode}/embed/captioned/ is rendered from.
	EmbedBase string
}

func NewInstagram(deps extractor.Deps, client instagram.Client, cookiesFile string) *Instagram {
	return &Instagram{
		Base: extractor.Base{
			Deps:        deps,
			CookiesFile: cookiesFile,
			ExtraArgs:   []string{"--no-check-certificates"},
			Signed:      true,
		},
		Client:    client,
		EmbedBase: instagramSite,
	}
}

func (i *Instagram) Platform() domain.Platform {
	return domain.PlatformInstagram
}

// Primary looks the post up through the private API. CDN urls are signed, so
// the bytes are fetched before returning.
func (i *Instagram) Primary(ctx context.Context, url string) (*domain.ScrapedMedia, error) {
	if i.Client == nil {
		return nil, extractor.ErrNotSupported
	}

	shortcode, err := instagram.Shortcode(url)
	if err != nil {
		return nil, domain.NewFailure(domain.FailureParse, "%v", err)
	}

	post, err := i.Client.GetPost(ctx, shortcode)
	if err != nil {
		return nil, err
	}

	res := &domain.ScrapedMedia{
		Caption:   post.Caption,
		Author:    post.Username,
		SourceURL: url,
	}
	for _, m := range post.Media {
		kind := domain.KindImage
		if m.IsVideo {
			kind = domain.KindVideo
		}
		res.Items = append(res.Items, &domain.MediaItem{
			Kind:      kind,
			RemoteURL: m.URL,
			Width:     m.Width,
			Height:    m.Height,
		})
	}
	res.Truncate(domain.MaxItems)

	if len(res.Items) > 0 {
		res.Items = i.ResolveAll(ctx, res.Items)
		if len(res.Items) == 0 {
			return nil, domain.NewFailure(domain.FailureNetwork, "signed media could not be fetched")
		}
	}
	return res, nil
}

// Tertiary renders the lightweight embed page, which exposes image urls
// without a login.
func (i *Instagram) Tertiary(ctx context.Context, url string) (*domain.ScrapedMedia, error) {
	if i.Browser == nil {
		return nil, extractor.ErrNotSupported
	}

	shortcode, err := instagram.Shortcode(url)
	if err != nil {
		return nil, domain.NewFailure(domain.FailureParse, "%v", err)
	}
	embedURL := i.EmbedBase + "/p/" + shortcode + "/embed/captioned/"

	html, err := i.Browser.Render(ctx, embedURL, browser.RenderOptions{})
	if err != nil {
		return nil, err
	}
	page, err := browser.ParsePage(html, embedURL)
	if err != nil {
		return nil, err
	}

	urls := embedImageURLs(page.Images, html)
	if len(urls) == 0 {
		return nil, domain.NewFailure(domain.FailureParse, "embed page has no image urls")
	}

	pending := make([]*domain.MediaItem, 0, domain.MaxItems)
	for _, u := range urls {
		if len(pending) == domain.MaxItems {
			break
		}
		pending = append(pending, &domain.MediaItem{Kind: domain.KindImage, RemoteURL: u})
	}

	res := &domain.ScrapedMedia{Caption: page.Description, SourceURL: url}
	for _, item := range i.ResolveAll(ctx, pending) {
		if len(item.Data) >= instagramMinImageBytes {
			res.Items = append(res.Items, item)
		}
	}
	if len(res.Items) == 0 {
		return nil, domain.NewFailure(domain.FailureNetwork, "no embed image could be fetched")
	}
	return res, nil
}

// embedImageURLs merges Open Graph images with CDN urls found in the markup.
func embedImageURLs(ogImages []string, html string) []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		u = strings.ReplaceAll(u, "&amp;", "&")
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	for _, u := range ogImages {
		add(u)
	}
	for _, u := range instagramCDNRe.FindAllString(html, -1) {
		add(u)
	}
	return urls
}
