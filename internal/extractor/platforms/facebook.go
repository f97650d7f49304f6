package platforms

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/orgball2608/media-extractor-bot/internal/browser"
	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/internal/extractor"
	"github.com/orgball2608/media-extractor-bot/internal/link"
)

const (
	facebookSite   = "https://www.facebook.com"
	facebookMbasic = "https://mbasic.facebook.com"

	// Post pages also carry avatars and reaction icons.
	facebookMinImageBytes = 5 * 1024
)

var (
	facebookCDNRe        = regexp.MustCompile(`(?i)scontent|fbcdn|external`)
	facebookImageExtRe   = regexp.MustCompile(`(?i)\.(?:jpg|jpeg|png|webp)(?:$|\?)`)
	facebookBackgroundRe = regexp.MustCompile(`(?i)background-image:\s*url\(['"]?(https?://[^)'"]+)['"]?\)`)
	facebookVideoPathRe  = regexp.MustCompile(`(?i)/(?:reel|reels|videos|watch)(?:/|\?|$)`)
)

type Facebook struct {
	extractor.Base

	// Site serves /plugins/post.php; Mbasic is the basic mobile site.
	Site   string
	Mbasic string
}

func NewFacebook(deps extractor.Deps, cookiesFile string) *Facebook {
	return &Facebook{
		Base:   extractor.Base{Deps: deps, CookiesFile: cookiesFile, Signed: true},
		Site:   facebookSite,
		Mbasic: facebookMbasic,
	}
}

func (f *Facebook) Platform() domain.Platform {
	return domain.PlatformFacebook
}

// Primary reads photo posts from the embed plugin page, then from the basic
// mobile site. Videos are left to the downloader.
func (f *Facebook) Primary(ctx context.Context, rawURL string) (*domain.ScrapedMedia, error) {
	if f.HTTP == nil {
		return nil, extractor.ErrNotSupported
	}

	target := f.resolve(ctx, rawURL)
	if isFacebookVideo(target) {
		return nil, extractor.ErrNotSupported
	}

	res, err := f.fromEmbed(ctx, target)
	if err != nil {
		f.Logger.Debug("Facebook embed page gave no media, trying mbasic", "url", target, "error", err)
		res, err = f.fromMbasic(ctx, target)
		if err != nil {
			return nil, err
		}
	}
	res.SourceURL = rawURL
	return res, nil
}

func (f *Facebook) Secondary(ctx context.Context, rawURL string) (*domain.ScrapedMedia, error) {
	target := f.resolve(ctx, rawURL)
	res, err := f.DownloadMedia(ctx, target, f.DownloaderOptions())
	if err != nil {
		return nil, err
	}
	res.SourceURL = rawURL
	return res, nil
}

func (f *Facebook) Tertiary(ctx context.Context, rawURL string) (*domain.ScrapedMedia, error) {
	res, err := f.Base.Tertiary(ctx, f.resolve(ctx, rawURL))
	if err != nil {
		return nil, err
	}
	res.SourceURL = rawURL
	return res, nil
}

// fromEmbed uses the public post plugin, which needs no login.
func (f *Facebook) fromEmbed(ctx context.Context, target string) (*domain.ScrapedMedia, error) {
	embedURL := strings.TrimRight(f.Site, "/") + "/plugins/post.php?href=" + url.QueryEscape(target) + "&show_text=true&width=500"

	html, err := fetchHTML(ctx, f.HTTP, embedURL, nil)
	if err != nil {
		return nil, err
	}
	return f.collect(ctx, html, embedURL)
}

// fromMbasic reads the basic mobile site with the facebook.com cookies, if any.
func (f *Facebook) fromMbasic(ctx context.Context, target string) (*domain.ScrapedMedia, error) {
	mbasicURL, err := rehost(target, f.Mbasic)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if cookie := f.cookieHeader(); cookie != "" {
		headers["Cookie"] = cookie
	}

	html, err := fetchHTML(ctx, f.HTTP, mbasicURL, headers)
	if err != nil {
		return nil, err
	}
	return f.collect(ctx, html, mbasicURL)
}

// collect turns the images of a post page into resolved items.
func (f *Facebook) collect(ctx context.Context, html, pageURL string) (*domain.ScrapedMedia, error) {
	page, err := browser.ParsePage(html, pageURL)
	if err != nil {
		return nil, domain.NewFailure(domain.FailureParse, "%v", err)
	}
	if len(page.Videos) > 0 {
		return nil, domain.NewFailure(domain.FailureUnsupported, "post is a video")
	}

	urls, err := facebookImageURLs(html, page.Images)
	if err != nil {
		return nil, domain.NewFailure(domain.FailureParse, "%v", err)
	}
	if len(urls) == 0 {
		return nil, domain.NewFailure(domain.FailureParse, "no images on %s", pageURL)
	}

	pending := make([]*domain.MediaItem, 0, domain.MaxItems)
	for _, u := range urls {
		if len(pending) == domain.MaxItems {
			break
		}
		pending = append(pending, &domain.MediaItem{Kind: domain.KindImage, RemoteURL: u})
	}

	res := &domain.ScrapedMedia{Caption: page.Description}
	if res.Caption == "" {
		res.Caption = page.Title
	}
	for _, item := range f.ResolveAll(ctx, pending) {
		if len(item.Data) >= facebookMinImageBytes {
			res.Items = append(res.Items, item)
		}
	}
	if len(res.Items) == 0 {
		return nil, domain.NewFailure(domain.FailureNetwork, "no post image could be fetched")
	}
	return res, nil
}

func (f *Facebook) cookieHeader() string {
	if f.CookiesFile == "" {
		return ""
	}
	cookies, err := browser.LoadCookies(f.CookiesFile)
	if err != nil {
		f.Logger.Warn("Could not load Facebook cookies", "error", err)
		return ""
	}

	var pairs []string
	for _, c := range cookies {
		if strings.HasSuffix(strings.TrimPrefix(c.Domain, "."), "facebook.com") {
			pairs = append(pairs, c.Name+"="+c.Value)
		}
	}
	return strings.Join(pairs, "; ")
}

// resolve follows /share/ short links and strips tracking parameters.
func (f *Facebook) resolve(ctx context.Context, rawURL string) string {
	target := rawURL
	if strings.Contains(target, "/share/") && f.HTTP != nil {
		target = followRedirects(ctx, f.HTTP, target)
	}
	return link.New().Clean(target, domain.PlatformFacebook)
}

func isFacebookVideo(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), "fb.watch") || facebookVideoPathRe.MatchString(u.Path)
}

// facebookImageURLs lists post images in page order: the fitted post image,
// Open Graph images, lazy and inline CDN images, then CSS backgrounds.
func facebookImageURLs(html string, ogImages []string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		u = strings.TrimSpace(strings.ReplaceAll(u, "&amp;", "&"))
		if !strings.HasPrefix(u, "http") || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	doc.Find("img.scaledImageFitWidth[src]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("src", ""))
	})
	for _, u := range ogImages {
		add(u)
	}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"data-src", "src"} {
			if u := s.AttrOr(attr, ""); facebookCDNRe.MatchString(u) && facebookImageExtRe.MatchString(u) {
				add(u)
			}
		}
	})
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		for _, m := range facebookBackgroundRe.FindAllStringSubmatch(s.AttrOr("style", ""), -1) {
			if facebookCDNRe.MatchString(m[1]) {
				add(m[1])
			}
		}
	})
	return urls, nil
}

// rehost moves rawURL onto base, keeping its path and query.
func rehost(rawURL, base string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", domain.NewFailure(domain.FailureParse, "invalid url %q", rawURL)
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Scheme = b.Scheme
	u.Host = b.Host
	u.Fragment = ""
	return u.String(), nil
}
