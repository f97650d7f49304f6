package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/internal/extractor"
	"github.com/orgball2608/media-extractor-bot/internal/fetcher"
	"github.com/orgball2608/media-extractor-bot/internal/link"
	"github.com/orgball2608/media-extractor-bot/internal/ratelimit"
	mock_journal "github.com/orgball2608/media-extractor-bot/internal/repositories/journal/mocks"
	pkgerrors "github.com/orgball2608/media-extractor-bot/pkg/errors"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const tweetURL = "https://x.com/someone/status/1"

type tierFunc func(ctx context.Context, url string) (*domain.ScrapedMedia, error)

type stubVariant struct {
	platform  domain.Platform
	primary   tierFunc
	secondary tierFunc
	calls     atomic.Int32

	mu   sync.Mutex
	urls []string
}

func (v *stubVariant) Platform() domain.Platform { return v.platform }
func (v *stubVariant) SignedMedia() bool         { return false }

func (v *stubVariant) Primary(ctx context.Context, url string) (*domain.ScrapedMedia, error) {
	v.calls.Add(1)
	v.mu.Lock()
	v.urls = append(v.urls, url)
	v.mu.Unlock()
	if v.primary == nil {
		return nil, extractor.ErrNotSupported
	}
	return v.primary(ctx, url)
}

func (v *stubVariant) Secondary(ctx context.Context, url string) (*domain.ScrapedMedia, error) {
	if v.secondary == nil {
		return nil, extractor.ErrNotSupported
	}
	return v.secondary(ctx, url)
}

func (v *stubVariant) Tertiary(context.Context, string) (*domain.ScrapedMedia, error) {
	return nil, extractor.ErrNotSupported
}

// spyFetcher counts calls into the real fetcher.
type spyFetcher struct {
	inner *fetcher.MediaFetcher
	calls atomic.Int32
}

func (s *spyFetcher) FetchAll(ctx context.Context, items []*domain.MediaItem) fetcher.Result {
	s.calls.Add(1)
	return s.inner.FetchAll(ctx, items)
}

type harness struct {
	orch     *Orchestrator
	variant  *stubVariant
	fetcher  *spyFetcher
	journal  *mock_journal.MockRepository
	registry *extractor.Registry
}

func newHarness(t *testing.T, v *stubVariant) *harness {
	t.Helper()
	log := logger.NewNop()

	f, err := fetcher.New(fetcher.Options{
		MaxConcurrent: 3,
		Limits:        fetcher.Limits{MaxBytes: 1024, Timeout: 200 * time.Millisecond},
	}, log)
	require.NoError(t, err)
	t.Cleanup(f.Close)

	registry := extractor.NewRegistry(extractor.Timeouts{}, log)
	registry.Register(v.platform, func() extractor.Variant { return v })

	ctrl := gomock.NewController(t)
	j := mock_journal.NewMockRepository(ctrl)

	spy := &spyFetcher{inner: f}
	return &harness{
		orch: New(Opts{
			Limiter:    ratelimit.NewInMemoryLimiter(ratelimit.Options{Capacity: 5, Window: time.Minute}),
			Classifier: link.New(),
			Resolver:   registry,
			Fetcher:    spy,
			Journal:    j,
			Logger:     log,
		}),
		variant:  v,
		fetcher:  spy,
		journal:  j,
		registry: registry,
	}
}

func (h *harness) expectJournal() {
	h.journal.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func resolvedVideo() *domain.MediaItem {
	return &domain.MediaItem{Kind: domain.KindVideo, Data: []byte("video")}
}

func mediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = w.Write([]byte("bytes of " + r.URL.Path))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProcess_UnsupportedPlatformStillConsumesToken(t *testing.T) {
	h := newHarness(t, &stubVariant{platform: domain.PlatformTwitter, primary: func(context.Context, string) (*domain.ScrapedMedia, error) {
		return &domain.ScrapedMedia{Items: []*domain.MediaItem{resolvedVideo()}}, nil
	}})
	h.expectJournal()

	for i := 0; i < 5; i++ {
		_, err := h.orch.Process(context.Background(), "https://example.com/video.mp4", 42)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsUnsupportedPlatform(err))
	}

	_, err := h.orch.Process(context.Background(), tweetURL, 42)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsRateLimited(err))
	assert.Equal(t, pkgerrors.CodeRateLimited, pkgerrors.GetCode(err))
	assert.Zero(t, h.variant.calls.Load())
}

func TestProcess_SixthRequestIsRateLimited(t *testing.T) {
	h := newHarness(t, &stubVariant{platform: domain.PlatformTwitter, primary: func(context.Context, string) (*domain.ScrapedMedia, error) {
		return &domain.ScrapedMedia{Caption: "text"}, nil
	}})
	h.expectJournal()

	for i := 0; i < 5; i++ {
		res, err := h.orch.Process(context.Background(), tweetURL, 7)
		require.NoError(t, err)
		assert.Equal(t, domain.MediaTypeTextOnly, res.MediaType)
	}

	_, err := h.orch.Process(context.Background(), tweetURL, 7)
	assert.True(t, pkgerrors.IsRateLimited(err))
	assert.EqualValues(t, 5, h.variant.calls.Load())

	// Another identity has its own bucket.
	_, err = h.orch.Process(context.Background(), tweetURL, 8)
	assert.NoError(t, err)
}

func TestProcess_ResolvedVideoNeedsNoFetch(t *testing.T) {
	h := newHarness(t, &stubVariant{
		platform: domain.PlatformTwitter,
		primary: func(context.Context, string) (*domain.ScrapedMedia, error) {
			return nil, errors.New("api down")
		},
		secondary: func(context.Context, string) (*domain.ScrapedMedia, error) {
			return &domain.ScrapedMedia{Items: []*domain.MediaItem{resolvedVideo()}}, nil
		},
	})
	h.expectJournal()

	res, err := h.orch.Process(context.Background(), tweetURL, 1)

	require.NoError(t, err)
	assert.Equal(t, domain.MethodUniversalDownloader, res.MethodUsed)
	assert.Equal(t, domain.MediaTypeVideo, res.MediaType)
	assert.Zero(t, h.fetcher.calls.Load())
}

func TestProcess_PartialFetchKeepsOrder(t *testing.T) {
	srv := mediaServer(t)
	h := newHarness(t, &stubVariant{platform: domain.PlatformTwitter, primary: func(context.Context, string) (*domain.ScrapedMedia, error) {
		return &domain.ScrapedMedia{Items: []*domain.MediaItem{
			{Kind: domain.KindVideo, RemoteURL: srv.URL + "/a"},
			{Kind: domain.KindVideo, RemoteURL: srv.URL + "/slow"},
			{Kind: domain.KindVideo, RemoteURL: srv.URL + "/c"},
		}}, nil
	}})

	var recorded domain.JournalEntry
	h.journal.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e domain.JournalEntry) error {
		recorded = e
		return nil
	})

	res, err := h.orch.Process(context.Background(), tweetURL, 1)

	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "bytes of /a", string(res.Items[0].Data))
	assert.Equal(t, "bytes of /c", string(res.Items[1].Data))
	assert.Equal(t, domain.MediaTypeMixedGroup, res.MediaType)

	assert.Equal(t, domain.OutcomePartial, recorded.Outcome)
	assert.Equal(t, 2, recorded.ItemCount)
	assert.Equal(t, domain.MethodAPI, recorded.Method)
	assert.Equal(t, int64(1), recorded.Identity)
}

func TestProcess_TruncatesToTenItems(t *testing.T) {
	h := newHarness(t, &stubVariant{platform: domain.PlatformTwitter, primary: func(context.Context, string) (*domain.ScrapedMedia, error) {
		items := make([]*domain.MediaItem, 12)
		for i := range items {
			items[i] = &domain.MediaItem{Kind: domain.KindImage, Data: []byte(fmt.Sprintf("img-%d", i))}
		}
		return &domain.ScrapedMedia{Items: items}, nil
	}})
	h.expectJournal()

	res, err := h.orch.Process(context.Background(), tweetURL, 1)

	require.NoError(t, err)
	require.Len(t, res.Items, domain.MaxItems)
	assert.Equal(t, "img-0", string(res.Items[0].Data))
	assert.Equal(t, "img-9", string(res.Items[9].Data))
}

func TestProcess_DeliveryFailed(t *testing.T) {
	srv := mediaServer(t)
	h := newHarness(t, &stubVariant{platform: domain.PlatformTwitter, primary: func(context.Context, string) (*domain.ScrapedMedia, error) {
		return &domain.ScrapedMedia{Caption: "caption", Items: []*domain.MediaItem{
			{Kind: domain.KindVideo, RemoteURL: srv.URL + "/missing"},
			{Kind: domain.KindVideo, RemoteURL: srv.URL + "/slow"},
		}}, nil
	}})
	h.expectJournal()

	res, err := h.orch.Process(context.Background(), tweetURL, 1)

	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, pkgerrors.IsDeliveryFailed(err))
	assert.ErrorIs(t, err, pkgerrors.ErrDeliveryFailed)

	var derr *domain.DeliveryError
	require.ErrorAs(t, err, &derr)
	require.Len(t, derr.Failures, 2)
	assert.Equal(t, domain.FailureNetwork, derr.Failures[0].Kind)
	assert.Equal(t, domain.FailureTimeout, derr.Failures[1].Kind)
}

func TestProcess_ExtractionFailedCarriesEveryTier(t *testing.T) {
	h := newHarness(t, &stubVariant{platform: domain.PlatformTwitter, primary: func(context.Context, string) (*domain.ScrapedMedia, error) {
		return nil, domain.NewFailure(domain.FailureParse, "bad json")
	}})
	h.expectJournal()

	_, err := h.orch.Process(context.Background(), tweetURL, 1)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsExtractionFailed(err))
	assert.ErrorIs(t, err, pkgerrors.ErrExtractionFailed)
	failures := ExtractionFailures(err)
	require.Len(t, failures, 3)
	assert.Equal(t, domain.MethodAPI, failures[0].Tier)
	assert.Equal(t, domain.FailureParse, failures[0].Kind)
	assert.Equal(t, domain.FailureUnsupported, failures[1].Kind)
	assert.Equal(t, domain.FailureUnsupported, failures[2].Kind)
}

func TestProcess_PlatformWithoutExtractor(t *testing.T) {
	h := newHarness(t, &stubVariant{platform: domain.PlatformTwitter})
	h.expectJournal()

	_, err := h.orch.Process(context.Background(), "https://github.com/octo/repo/pull/1", 1)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsUnsupportedPlatform(err))
	assert.ErrorIs(t, err, extractor.ErrNoExtractor)
}

func TestProcess_CleansURLBeforeExtraction(t *testing.T) {
	h := newHarness(t, &stubVariant{platform: domain.PlatformTikTok, primary: func(context.Context, string) (*domain.ScrapedMedia, error) {
		return &domain.ScrapedMedia{Items: []*domain.MediaItem{resolvedVideo()}}, nil
	}})
	h.expectJournal()

	res, err := h.orch.Process(context.Background(), "https://www.tiktok.com/@a/video/1?is_from_webapp=1", 1)

	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.tiktok.com/@a/video/1"}, h.variant.urls)
	assert.Equal(t, "https://www.tiktok.com/@a/video/1", res.SourceURL)
}

func TestProcess_JournalErrorIsNotSurfaced(t *testing.T) {
	h := newHarness(t, &stubVariant{platform: domain.PlatformTwitter, primary: func(context.Context, string) (*domain.ScrapedMedia, error) {
		return &domain.ScrapedMedia{Caption: "text"}, nil
	}})
	h.journal.EXPECT().Record(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	res, err := h.orch.Process(context.Background(), tweetURL, 1)

	require.NoError(t, err)
	assert.Equal(t, "text", res.Caption)
}
