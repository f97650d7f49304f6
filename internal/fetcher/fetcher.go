package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/pkg/config"
	"github.com/orgball2608/media-extractor-bot/pkg/httpclient"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/fx"
)

const (
	defaultMaxConcurrent = 3
	defaultMaxBytes      = 50 * 1024 * 1024
	defaultTimeout       = 30 * time.Second
)

// Limits bound a single download.
type Limits struct {
	MaxBytes int64
	Timeout  time.Duration
}

// Result holds the resolved items in their original order. Failed slots are omitted.
type Result struct {
	Resolved []*domain.MediaItem
	Failures []domain.FetchFailure
}

type Options struct {
	MaxConcurrent int
	Limits        Limits
	Normalizer    Normalizer
	Client        *http.Client
}

// MediaFetcher downloads pending media through one process-wide worker pool.
type MediaFetcher struct {
	pool       *ants.Pool
	client     *http.Client
	limits     Limits
	normalizer Normalizer
	logger     logger.Logger
}

func New(opts Options, log logger.Logger) (*MediaFetcher, error) {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	if opts.Limits.MaxBytes <= 0 {
		opts.Limits.MaxBytes = defaultMaxBytes
	}
	if opts.Limits.Timeout <= 0 {
		opts.Limits.Timeout = defaultTimeout
	}
	if opts.Client == nil {
		// Per-item deadlines come from the request context.
		opts.Client = httpclient.New(httpclient.Config{Timeout: 10 * time.Minute})
	}

	pool, err := ants.NewPool(opts.MaxConcurrent, ants.WithPreAlloc(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create download pool: %w", err)
	}

	return &MediaFetcher{
		pool:       pool,
		client:     opts.Client,
		limits:     opts.Limits,
		normalizer: opts.Normalizer,
		logger:     log.WithComponent("MediaFetcher"),
	}, nil
}

type Opts struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Logger logger.Logger
}

func NewFromConfig(opts Opts) (*MediaFetcher, error) {
	f, err := New(Options{
		MaxConcurrent: opts.Config.Fetcher.MaxConcurrent,
		Limits: Limits{
			MaxBytes: opts.Config.MaxFileSize(),
			Timeout:  opts.Config.Fetcher.DownloadTimeout,
		},
		Normalizer: Normalizer{
			MaxDimension: opts.Config.Fetcher.MaxImageDimension,
			JPEGQuality:  opts.Config.Fetcher.JPEGQuality,
		},
	}, opts.Logger)
	if err != nil {
		return nil, err
	}

	opts.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			f.Close()
			return nil
		},
	})
	return f, nil
}

// Limits returns the default per-item limits.
func (f *MediaFetcher) Limits() Limits {
	return f.limits
}

func (f *MediaFetcher) Close() {
	f.pool.Release()
}

// FetchAll resolves pending items with the default limits.
func (f *MediaFetcher) FetchAll(ctx context.Context, items []*domain.MediaItem) Result {
	return f.FetchAllWithLimits(ctx, items, f.limits)
}

func (f *MediaFetcher) FetchAllWithLimits(ctx context.Context, items []*domain.MediaItem, limits Limits) Result {
	slots := make([]*domain.MediaItem, len(items))
	failures := make([]*domain.FetchFailure, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		if item.Resolved() {
			slots[i] = item
			continue
		}
		if item.RemoteURL == "" {
			failures[i] = &domain.FetchFailure{Index: i, Kind: domain.FailureParse, Detail: "item has neither bytes nor url"}
			continue
		}

		wg.Add(1)
		idx, pending := i, item
		err := f.pool.Submit(func() {
			defer wg.Done()
			resolved, failure := f.fetchOne(ctx, pending, limits)
			if failure != nil {
				failures[idx] = &domain.FetchFailure{Index: idx, URL: pending.RemoteURL, Kind: failure.Kind, Detail: failure.Detail}
				return
			}
			slots[idx] = resolved
		})
		if err != nil {
			wg.Done()
			failures[idx] = &domain.FetchFailure{Index: idx, URL: pending.RemoteURL, Kind: domain.FailureNetwork, Detail: err.Error()}
		}
	}
	wg.Wait()

	var res Result
	for i := range items {
		if slots[i] != nil {
			res.Resolved = append(res.Resolved, slots[i])
			continue
		}
		if failures[i] != nil {
			f.logger.Warn("Media item could not be fetched", "index", i, "url", failures[i].URL, "kind", failures[i].Kind, "detail", failures[i].Detail)
			res.Failures = append(res.Failures, *failures[i])
		}
	}
	return res
}

func (f *MediaFetcher) fetchOne(ctx context.Context, item *domain.MediaItem, limits Limits) (*domain.MediaItem, *domain.Failure) {
	if err := ctx.Err(); err != nil {
		return nil, classifyContext(err)
	}

	data, failure := f.download(ctx, item.RemoteURL, limits)
	if failure != nil {
		return nil, failure
	}

	resolved := *item
	resolved.Data = data
	if err := f.normalizer.Normalize(&resolved); err != nil {
		f.logger.Debug("Image normalization skipped, keeping original bytes", "url", item.RemoteURL, "error", err)
	}
	return &resolved, nil
}

func (f *MediaFetcher) download(ctx context.Context, url string, limits Limits) ([]byte, *domain.Failure) {
	ctx, cancel := context.WithTimeout(ctx, limits.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.Failure{Kind: domain.FailureParse, Detail: "invalid media url", Err: err}
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyContext(ctx.Err())
		}
		return nil, &domain.Failure{Kind: domain.FailureNetwork, Detail: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewFailure(domain.FailureNetwork, "unexpected status %d", resp.StatusCode)
	}
	if resp.ContentLength > limits.MaxBytes {
		return nil, domain.NewFailure(domain.FailureSizeExceeded, "content length %d exceeds %d bytes", resp.ContentLength, limits.MaxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limits.MaxBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyContext(ctx.Err())
		}
		return nil, &domain.Failure{Kind: domain.FailureNetwork, Detail: "read body", Err: err}
	}
	if int64(len(data)) > limits.MaxBytes {
		return nil, domain.NewFailure(domain.FailureSizeExceeded, "body exceeds %d bytes", limits.MaxBytes)
	}
	if len(data) == 0 {
		return nil, domain.NewFailure(domain.FailureNetwork, "empty body")
	}
	return data, nil
}

func classifyContext(err error) *domain.Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.Failure{Kind: domain.FailureTimeout, Detail: "download deadline exceeded", Err: err}
	}
	return &domain.Failure{Kind: domain.FailureNetwork, Detail: "download cancelled", Err: err}
}
