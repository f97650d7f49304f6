package platforms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/pkg/httpclient"
)

// rebase swaps the scheme and host of rawURL for base, keeping the path.
func rebase(rawURL, base string) (string, error) {
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
	u.Path = strings.TrimRight(b.Path, "/") + u.Path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// followRedirects returns the final url after redirects, without its query.
// On failure the input is returned unchanged.
func followRedirects(ctx context.Context, client *http.Client, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return rawURL
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return rawURL
	}
	defer resp.Body.Close()

	final := *resp.Request.URL
	final.RawQuery = ""
	return final.String()
}

// maxPageBytes caps how much of an HTML page is read.
const maxPageBytes = 2 << 20

// fetchHTML GETs a page and returns at most maxPageBytes of its body.
func fetchHTML(ctx context.Context, client *http.Client, rawURL string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &httpclient.StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	return string(body), nil
}
