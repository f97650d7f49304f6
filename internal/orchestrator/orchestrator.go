package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/internal/extractor"
	"github.com/orgball2608/media-extractor-bot/internal/fetcher"
	"github.com/orgball2608/media-extractor-bot/internal/ratelimit"
	"github.com/orgball2608/media-extractor-bot/internal/repositories/journal"
	pkgerrors "github.com/orgball2608/media-extractor-bot/pkg/errors"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
	"go.uber.org/fx"
)

const journalTimeout = 5 * time.Second

type Classifier interface {
	Classify(url string) (domain.Platform, bool)
	Clean(url string, platform domain.Platform) string
}

type Resolver interface {
	Resolve(p domain.Platform) (*extractor.Extractor, error)
}

type Fetcher interface {
	FetchAll(ctx context.Context, items []*domain.MediaItem) fetcher.Result
}

type Opts struct {
	fx.In

	Limiter    ratelimit.Limiter
	Classifier Classifier
	Resolver   Resolver
	Fetcher    Fetcher
	Journal    journal.Repository
	Logger     logger.Logger
}

// Orchestrator takes one url from admission to a deliverable result.
type Orchestrator struct {
	limiter    ratelimit.Limiter
	classifier Classifier
	resolver   Resolver
	fetcher    Fetcher
	journal    journal.Repository
	logger     logger.Logger
}

func New(opts Opts) *Orchestrator {
	return &Orchestrator{
		limiter:    opts.Limiter,
		classifier: opts.Classifier,
		resolver:   opts.Resolver,
		fetcher:    opts.Fetcher,
		journal:    opts.Journal,
		logger:     opts.Logger.WithComponent("Orchestrator"),
	}
}

// Process admits, extracts and fetches the media behind url for identity.
// Returned errors carry one of the pipeline codes from pkg/errors.
func (o *Orchestrator) Process(ctx context.Context, url string, identity int64) (*domain.ScrapedMedia, error) {
	start := time.Now()
	entry := domain.JournalEntry{Identity: identity, SourceURL: url}

	res, err := o.process(ctx, url, identity, &entry)

	entry.Duration = time.Since(start)
	if err != nil {
		entry.Detail = err.Error()
	}
	o.record(ctx, entry)

	return res, err
}

func (o *Orchestrator) process(ctx context.Context, url string, identity int64, entry *domain.JournalEntry) (*domain.ScrapedMedia, error) {
	if !o.limiter.Allow(identity) {
		entry.Outcome = domain.OutcomeRateLimited
		o.logger.Info("Request rate limited", "identity", identity)
		return nil, pkgerrors.WrapWithCode(pkgerrors.ErrRateLimited, pkgerrors.CodeRateLimited, "too many requests")
	}

	platform, ok := o.classifier.Classify(url)
	if !ok {
		entry.Outcome = domain.OutcomeUnsupportedPlatform
		return nil, pkgerrors.WrapWithCode(pkgerrors.ErrUnsupportedPlatform, pkgerrors.CodeUnsupportedPlatform, "no platform matches url")
	}
	url = o.classifier.Clean(url, platform)
	entry.Platform = platform
	entry.SourceURL = url

	ext, err := o.resolver.Resolve(platform)
	if err != nil {
		entry.Outcome = domain.OutcomeUnsupportedPlatform
		return nil, pkgerrors.WrapWithCode(fmt.Errorf("%w: %w", pkgerrors.ErrUnsupportedPlatform, err), pkgerrors.CodeUnsupportedPlatform, "no extractor for platform")
	}

	log := o.logger.With("platform", platform.String(), "url", url, "identity", identity)

	res, err := ext.Extract(ctx, url)
	if err != nil {
		entry.Outcome = domain.OutcomeExtractionFailed
		log.Warn("Extraction failed", "error", err)
		return nil, pkgerrors.WrapWithCode(fmt.Errorf("%w: %w", pkgerrors.ErrExtractionFailed, err), pkgerrors.CodeExtractionFailed, "extract media")
	}
	entry.Method = res.MethodUsed

	res.Truncate(domain.MaxItems)

	if res.HasMedia() && res.PendingCount() > 0 {
		fetched := o.fetcher.FetchAll(ctx, res.Items)
		if len(fetched.Resolved) == 0 {
			entry.Outcome = domain.OutcomeDeliveryFailed
			derr := &domain.DeliveryError{URL: url, Failures: fetched.Failures}
			log.Warn("No media could be fetched", "error", derr)
			return nil, pkgerrors.WrapWithCode(fmt.Errorf("%w: %w", pkgerrors.ErrDeliveryFailed, derr), pkgerrors.CodeDeliveryFailed, "fetch media")
		}
		if len(fetched.Failures) > 0 {
			entry.Outcome = domain.OutcomePartial
			log.Info("Delivering partial result", "fetched", len(fetched.Resolved), "failed", len(fetched.Failures))
		}
		res.Items = fetched.Resolved
	}
	res.Normalize()

	if entry.Outcome == "" {
		entry.Outcome = domain.OutcomeDelivered
	}
	entry.ItemCount = len(res.Items)

	log.Info("Request processed", "method", res.MethodUsed, "media_type", res.MediaType, "items", len(res.Items))
	return res, nil
}

// record writes the journal entry; the request outcome never depends on it.
func (o *Orchestrator) record(ctx context.Context, entry domain.JournalEntry) {
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()

	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	if err := o.journal.Record(jctx, entry); err != nil {
		o.logger.Error("Failed to record journal entry", "outcome", entry.Outcome, "error", err)
	}
}

// ExtractionFailures returns the per-tier failures carried by err, if any.
func ExtractionFailures(err error) []domain.ExtractionFailure {
	var extErr *domain.ExtractionError
	if errors.As(err, &extErr) {
		return extErr.Failures
	}
	return nil
}
