package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/internal/extractor"
	"github.com/orgball2608/media-extractor-bot/pkg/httpclient"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	redditTokenURL = "https://www.reddit.com/api/v1/access_token"
	redditOAuthAPI = "https://oauth.reddit.com"
	redditAPI      = "https://www.reddit.com"
)

type Reddit struct {
	extractor.Base

	// APIBase serves the public .json listing; OAuthBase is used once a token is available.
	APIBase   string
	OAuthBase string
	TokenURL  string

	clientID     string
	clientSecret string

	tokenOnce sync.Once
	tokens    oauth2.TokenSource
}

func NewReddit(deps extractor.Deps, clientID, clientSecret string) *Reddit {
	return &Reddit{
		Base:         extractor.Base{Deps: deps},
		APIBase:      redditAPI,
		OAuthBase:    redditOAuthAPI,
		TokenURL:     redditTokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

func (r *Reddit) Platform() domain.Platform {
	return domain.PlatformReddit
}

type redditListing []struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditImage struct {
	URL string `json:"u"`
}

type redditPost struct {
	Title         string `json:"title"`
	Selftext      string `json:"selftext"`
	Author        string `json:"author"`
	URL           string `json:"url"`
	PostHint      string `json:"post_hint"`
	IsVideo       bool   `json:"is_video"`
	IsGallery     bool   `json:"is_gallery"`
	Over18        bool   `json:"over_18"`
	Spoiler       bool   `json:"spoiler"`
	MediaMetadata map[string]struct {
		Status string      `json:"status"`
		S      redditImage `json:"s"`
	} `json:"media_metadata"`
	GalleryData struct {
		Items []struct {
			MediaID string `json:"media_id"`
		} `json:"items"`
	} `json:"gallery_data"`
	Media struct {
		RedditVideo struct {
			FallbackURL string `json:"fallback_url"`
		} `json:"reddit_video"`
	} `json:"media"`
	Preview struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
}

func (r *Reddit) Primary(ctx context.Context, url string) (*domain.ScrapedMedia, error) {
	target := url
	if strings.Contains(target, "/s/") {
		target = followRedirects(ctx, r.HTTP, target)
		r.Logger.Debug("Reddit short link resolved", "url", url, "resolved", target)
	}

	base, headers := r.APIBase, map[string]string{}
	if token := r.token(); token != "" {
		base = r.OAuthBase
		headers["Authorization"] = "Bearer " + token
	}

	jsonURL, err := rebase(target, base)
	if err != nil {
		return nil, err
	}
	jsonURL = strings.TrimRight(jsonURL, "/") + ".json"

	post, err := r.fetchPost(ctx, jsonURL, headers)
	if err != nil {
		return nil, err
	}

	res := &domain.ScrapedMedia{
		Caption:   post.Title,
		SourceURL: url,
	}
	if post.Selftext != "" {
		res.Caption = post.Title + "\n\n" + post.Selftext
	}
	if post.Author != "" {
		res.Author = "u/" + post.Author
	}

	spoiler := post.Over18 || post.Spoiler
	switch {
	case post.PostHint == "image":
		res.Items = append(res.Items, &domain.MediaItem{Kind: domain.KindImage, RemoteURL: post.URL})
	case post.IsVideo:
		item, err := r.hostedVideo(ctx, url, post)
		if err != nil {
			return nil, err
		}
		res.Items = append(res.Items, item)
	case post.IsGallery:
		for _, u := range post.galleryURLs() {
			res.Items = append(res.Items, &domain.MediaItem{Kind: domain.KindImage, RemoteURL: u})
		}
	case post.PostHint == "link" && len(post.Preview.Images) > 0:
		res.Items = append(res.Items, &domain.MediaItem{
			Kind:      domain.KindImage,
			RemoteURL: unescapeAmp(post.Preview.Images[0].Source.URL),
		})
	}

	for _, item := range res.Items {
		item.Spoiler = spoiler
	}
	return res, nil
}

func (r *Reddit) fetchPost(ctx context.Context, jsonURL string, headers map[string]string) (*redditPost, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jsonURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "json") && strings.Contains(ct, "text/html") {
		return nil, domain.NewFailure(domain.FailureParse, "reddit returned html instead of json")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &httpclient.StatusError{URL: jsonURL, StatusCode: resp.StatusCode}
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode reddit listing: %w", err)
	}
	if len(listing) == 0 || len(listing[0].Data.Children) == 0 {
		return nil, domain.NewFailure(domain.FailureParse, "reddit listing has no post")
	}
	return &listing[0].Data.Children[0].Data, nil
}

// hostedVideo downloads v.redd.it media so audio and video are merged. The
// silent fallback stream is used if the download fails.
func (r *Reddit) hostedVideo(ctx context.Context, url string, post *redditPost) (*domain.MediaItem, error) {
	dl, err := r.DownloadMedia(ctx, url, r.DownloaderOptions())
	if err == nil {
		return dl.Items[0], nil
	}

	fallback := post.Media.RedditVideo.FallbackURL
	if fallback == "" {
		return nil, err
	}
	r.Logger.Debug("Reddit video download failed, using fallback stream", "url", url, "error", err)
	return &domain.MediaItem{Kind: domain.KindVideo, RemoteURL: fallback}, nil
}

// galleryURLs lists gallery images in gallery order.
func (p *redditPost) galleryURLs() []string {
	ids := make([]string, 0, len(p.MediaMetadata))
	for _, item := range p.GalleryData.Items {
		ids = append(ids, item.MediaID)
	}
	if len(ids) == 0 {
		for id := range p.MediaMetadata {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}

	urls := make([]string, 0, len(ids))
	for _, id := range ids {
		meta, ok := p.MediaMetadata[id]
		if !ok || meta.Status != "valid" || meta.S.URL == "" {
			continue
		}
		urls = append(urls, unescapeAmp(meta.S.URL))
	}
	return urls
}

// token returns an application-only OAuth token, or "" when none is configured
// or the token endpoint fails.
func (r *Reddit) token() string {
	if r.clientID == "" || r.clientSecret == "" {
		return ""
	}

	r.tokenOnce.Do(func() {
		cfg := clientcredentials.Config{
			ClientID:     r.clientID,
			ClientSecret: r.clientSecret,
			TokenURL:     r.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		client := &http.Client{
			Timeout:   r.HTTP.Timeout,
			Transport: userAgentTransport{base: r.HTTP.Transport},
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		r.tokens = cfg.TokenSource(tokenCtx)
	})

	tok, err := r.tokens.Token()
	if err != nil {
		r.Logger.Warn("Reddit OAuth token request failed", "error", err)
		return ""
	}
	return tok.AccessToken
}

type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", httpclient.UserAgent)
	return base.RoundTrip(req)
}

func unescapeAmp(s string) string {
	return strings.ReplaceAll(s, "&amp;", "&")
}
