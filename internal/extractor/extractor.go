package extractor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/orgball2608/media-extractor-bot/internal/browser"
	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/pkg/httpclient"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
)

var (
	// ErrNotSupported is returned by a tier the platform does not implement.
	ErrNotSupported = errors.New("method not supported for this platform")

	errPanic = errors.New("extraction panicked")
)

// Variant is one platform's set of extraction tiers.
type Variant interface {
	Platform() domain.Platform

	// Primary uses the platform's API or a lightweight endpoint.
	Primary(ctx context.Context, url string) (*domain.ScrapedMedia, error)
	// Secondary uses the universal downloader.
	Secondary(ctx context.Context, url string) (*domain.ScrapedMedia, error)
	// Tertiary renders the page in a headless browser.
	Tertiary(ctx context.Context, url string) (*domain.ScrapedMedia, error)

	// SignedMedia reports that remote urls from this platform cannot be fetched
	// later, so every returned item must already hold its bytes.
	SignedMedia() bool
}

type Timeouts struct {
	Primary   time.Duration
	Secondary time.Duration
	Tertiary  time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Primary:   30 * time.Second,
		Secondary: 90 * time.Second,
		Tertiary:  120 * time.Second,
	}
}

type tier struct {
	method  domain.Method
	run     func(ctx context.Context, url string) (*domain.ScrapedMedia, error)
	timeout time.Duration
}

// Extractor runs a variant's tiers in order until one succeeds.
type Extractor struct {
	variant  Variant
	timeouts Timeouts
	logger   logger.Logger
}

func New(v Variant, timeouts Timeouts, log logger.Logger) *Extractor {
	defaults := DefaultTimeouts()
	if timeouts.Primary <= 0 {
		timeouts.Primary = defaults.Primary
	}
	if timeouts.Secondary <= 0 {
		timeouts.Secondary = defaults.Secondary
	}
	if timeouts.Tertiary <= 0 {
		timeouts.Tertiary = defaults.Tertiary
	}

	return &Extractor{
		variant:  v,
		timeouts: timeouts,
		logger:   log.WithComponent("Extractor").With("platform", v.Platform().String()),
	}
}

func (e *Extractor) Platform() domain.Platform {
	return e.variant.Platform()
}

// Extract tries each tier once, strictly one after another. A tier that misses
// its deadline is abandoned and its late result discarded.
func (e *Extractor) Extract(ctx context.Context, url string) (*domain.ScrapedMedia, error) {
	start := time.Now()
	tiers := []tier{
		{domain.MethodAPI, e.variant.Primary, e.timeouts.Primary},
		{domain.MethodUniversalDownloader, e.variant.Secondary, e.timeouts.Secondary},
		{domain.MethodHeadlessBrowser, e.variant.Tertiary, e.timeouts.Tertiary},
	}

	failures := make([]domain.ExtractionFailure, 0, len(tiers))
	for _, t := range tiers {
		if err := ctx.Err(); err != nil {
			failures = append(failures, classify(t.method, err))
			break
		}

		tierStart := time.Now()
		res, err := e.runTier(ctx, t, url)
		if err == nil {
			err = e.validate(res)
		}
		if err != nil {
			failure := classify(t.method, err)
			failures = append(failures, failure)
			if errors.Is(err, ErrNotSupported) {
				e.logger.Debug("Tier skipped", "tier", t.method)
			} else {
				e.logger.Warn("Tier failed, falling back", "tier", t.method, "kind", failure.Kind, "detail", failure.Detail, "elapsed", time.Since(tierStart))
			}
			continue
		}

		res.MethodUsed = t.method
		res.Platform = e.variant.Platform()
		if res.SourceURL == "" {
			res.SourceURL = url
		}
		res.ExtractionDuration = time.Since(start)
		res.Normalize()

		e.logger.Info("Extraction succeeded", "tier", t.method, "items", len(res.Items), "elapsed", res.ExtractionDuration)
		return res, nil
	}

	return nil, &domain.ExtractionError{
		Platform: e.variant.Platform(),
		URL:      url,
		Failures: failures,
	}
}

func (e *Extractor) runTier(ctx context.Context, t tier, url string) (*domain.ScrapedMedia, error) {
	tctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type outcome struct {
		res *domain.ScrapedMedia
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("Panic recovered in extraction tier", "tier", t.method, "panic", r, "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("%w: %v", errPanic, r)}
			}
		}()
		res, err := t.run(tctx, url)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-tctx.Done():
		return nil, tctx.Err()
	}
}

func (e *Extractor) validate(res *domain.ScrapedMedia) error {
	if res == nil {
		return domain.NewFailure(domain.FailureParse, "tier returned no result")
	}

	items := res.Items[:0]
	for _, item := range res.Items {
		if item != nil && (item.Resolved() || item.Pending()) {
			items = append(items, item)
		}
	}
	res.Items = items

	if res.Empty() {
		return domain.NewFailure(domain.FailureParse, "no media or text found")
	}
	if e.variant.SignedMedia() {
		for _, item := range res.Items {
			if !item.Resolved() {
				return domain.NewFailure(domain.FailureParse, "unresolved signed media")
			}
		}
	}
	return nil
}

func classify(method domain.Method, err error) domain.ExtractionFailure {
	f := domain.ExtractionFailure{Tier: method, Kind: domain.FailureParse, Detail: err.Error()}

	var failure *domain.Failure
	var statusErr *httpclient.StatusError
	var netErr net.Error
	var urlErr *url.Error

	switch {
	case errors.Is(err, ErrNotSupported), errors.Is(err, browser.ErrDisabled):
		f.Kind = domain.FailureUnsupported
	case errors.Is(err, context.DeadlineExceeded):
		f.Kind = domain.FailureTimeout
	case errors.Is(err, context.Canceled):
		f.Kind = domain.FailureNetwork
	case errors.As(err, &failure):
		f.Kind = failure.Kind
	case errors.As(err, &statusErr):
		if statusErr.StatusCode == http.StatusTooManyRequests {
			f.Kind = domain.FailureRateLimited
		} else {
			f.Kind = domain.FailureNetwork
		}
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			f.Kind = domain.FailureTimeout
		} else {
			f.Kind = domain.FailureNetwork
		}
	case errors.As(err, &urlErr):
		f.Kind = domain.FailureNetwork
	}
	return f
}
