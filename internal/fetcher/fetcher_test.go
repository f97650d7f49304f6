package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type FetcherSuite struct {
	suite.Suite
	fetcher *MediaFetcher
}

func (s *FetcherSuite) SetupTest() {
	f, err := New(Options{
		MaxConcurrent: 3,
		Limits:        Limits{MaxBytes: 1024, Timeout: time.Second},
	}, logger.NewNop())
	s.Require().NoError(err)
	s.fetcher = f
}

func (s *FetcherSuite) TearDownTest() {
	s.fetcher.Close()
}

func TestFetcherSuite(t *testing.T) {
	suite.Run(t, new(FetcherSuite))
}

func pending(url string) *domain.MediaItem {
	return &domain.MediaItem{Kind: domain.KindVideo, RemoteURL: url}
}

func (s *FetcherSuite) TestConcurrencyNeverExceedsPoolSize() {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	items := make([]*domain.MediaItem, 10)
	for i := range items {
		items[i] = pending(fmt.Sprintf("%s/v/%d", srv.URL, i))
	}

	res := s.fetcher.FetchAll(context.Background(), items)

	s.Len(res.Resolved, 10)
	s.Empty(res.Failures)
	s.LessOrEqual(peak.Load(), int32(3))
	s.Greater(peak.Load(), int32(0))
}

func (s *FetcherSuite) TestConcurrentCallersShareThePool() {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	done := make(chan Result, 4)
	for c := 0; c < 4; c++ {
		go func(c int) {
			items := []*domain.MediaItem{
				pending(fmt.Sprintf("%s/%d/a", srv.URL, c)),
				pending(fmt.Sprintf("%s/%d/b", srv.URL, c)),
				pending(fmt.Sprintf("%s/%d/c", srv.URL, c)),
			}
			done <- s.fetcher.FetchAll(context.Background(), items)
		}(c)
	}
	for c := 0; c < 4; c++ {
		s.Len((<-done).Resolved, 3)
	}
	s.LessOrEqual(peak.Load(), int32(3))
}

func (s *FetcherSuite) TestSizeExceededByContentLength() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 2048))
	}))
	defer srv.Close()

	res := s.fetcher.FetchAll(context.Background(), []*domain.MediaItem{pending(srv.URL)})

	s.Empty(res.Resolved)
	s.Require().Len(res.Failures, 1)
	s.Equal(domain.FailureSizeExceeded, res.Failures[0].Kind)
}

func (s *FetcherSuite) TestSizeExceededMidStream() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 8; i++ {
			_, _ = w.Write(bytes.Repeat([]byte("y"), 256))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	item := pending(srv.URL)
	res := s.fetcher.FetchAll(context.Background(), []*domain.MediaItem{item})

	s.Empty(res.Resolved)
	s.Require().Len(res.Failures, 1)
	s.Equal(domain.FailureSizeExceeded, res.Failures[0].Kind)
	s.Nil(item.Data, "no partial bytes are attached")
}

func (s *FetcherSuite) TestTimeout() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	res := s.fetcher.FetchAllWithLimits(context.Background(), []*domain.MediaItem{pending(srv.URL)}, Limits{MaxBytes: 1024, Timeout: 50 * time.Millisecond})

	s.Require().Len(res.Failures, 1)
	s.Equal(domain.FailureTimeout, res.Failures[0].Kind)
}

func (s *FetcherSuite) TestPartialFailureKeepsOrder() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/1") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("item" + r.URL.Path))
	}))
	defer srv.Close()

	items := []*domain.MediaItem{
		pending(srv.URL + "/0"),
		pending(srv.URL + "/1"),
		pending(srv.URL + "/2"),
	}
	res := s.fetcher.FetchAll(context.Background(), items)

	s.Require().Len(res.Resolved, 2)
	s.Equal("item/0", string(res.Resolved[0].Data))
	s.Equal("item/2", string(res.Resolved[1].Data))
	s.Require().Len(res.Failures, 1)
	s.Equal(1, res.Failures[0].Index)
	s.Equal(domain.FailureNetwork, res.Failures[0].Kind)
}

func (s *FetcherSuite) TestResolvedItemsPassThrough() {
	item := &domain.MediaItem{Kind: domain.KindVideo, Data: []byte("already here")}

	res := s.fetcher.FetchAll(context.Background(), []*domain.MediaItem{item})

	s.Require().Len(res.Resolved, 1)
	s.Same(item, res.Resolved[0])
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 10, G: 200, B: 10, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func TestNormalize_FitsLargeImage(t *testing.T) {
	item := &domain.MediaItem{Kind: domain.KindImage, Data: encodePNG(t, 3000, 1000)}

	err := Normalizer{MaxDimension: 1920}.Normalize(item)

	require.NoError(t, err)
	assert.Equal(t, 1920, item.Width)
	assert.Equal(t, 640, item.Height)
}

func TestNormalize_SmallJPEGUntouched(t *testing.T) {
	original := encodeJPEG(t, 200, 100)
	item := &domain.MediaItem{Kind: domain.KindImage, Data: original}

	err := Normalizer{}.Normalize(item)

	require.NoError(t, err)
	assert.Equal(t, original, item.Data)
	assert.Equal(t, 200, item.Width)
	assert.Equal(t, 100, item.Height)
}

func TestNormalize_GarbageKeepsOriginal(t *testing.T) {
	original := []byte("definitely not an image")
	item := &domain.MediaItem{Kind: domain.KindImage, Data: original}

	err := Normalizer{}.Normalize(item)

	assert.Error(t, err)
	assert.Equal(t, original, item.Data)
}

func encodeTIFF(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := imaging.New(40, 20, c)
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.TIFF))
	return buf.Bytes()
}

func TestNormalize_TransparentImageKeepsAlpha(t *testing.T) {
	item := &domain.MediaItem{Kind: domain.KindImage, Data: encodeTIFF(t, color.NRGBA{R: 10, G: 20, B: 30, A: 0})}

	require.NoError(t, Normalizer{}.Normalize(item))

	assert.Equal(t, "image/png", mimetype.Detect(item.Data).String())
	img, err := imaging.Decode(bytes.NewReader(item.Data))
	require.NoError(t, err)
	_, _, _, a := img.At(5, 5).RGBA()
	assert.Zero(t, a)
	assert.Equal(t, 40, item.Width)
}

func TestNormalize_OpaqueImageBecomesJPEG(t *testing.T) {
	item := &domain.MediaItem{Kind: domain.KindImage, Data: encodeTIFF(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255})}

	require.NoError(t, Normalizer{}.Normalize(item))

	assert.Equal(t, "image/jpeg", mimetype.Detect(item.Data).String())
	assert.Equal(t, 20, item.Height)
}

func TestNormalize_GIFBecomesAnimated(t *testing.T) {
	item := &domain.MediaItem{Kind: domain.KindImage, Data: []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")}

	require.NoError(t, Normalizer{}.Normalize(item))
	assert.Equal(t, domain.KindAnimatedImage, item.Kind)
}

func TestFetchAll_NormalizesDownloadedImages(t *testing.T) {
	payload := encodePNG(t, 2400, 2400)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f, err := New(Options{Normalizer: Normalizer{MaxDimension: 1920}}, logger.NewNop())
	require.NoError(t, err)
	defer f.Close()

	res := f.FetchAll(context.Background(), []*domain.MediaItem{{Kind: domain.KindImage, RemoteURL: srv.URL}})

	require.Len(t, res.Resolved, 1)
	assert.Equal(t, 1920, res.Resolved[0].Width)
	assert.Equal(t, 1920, res.Resolved[0].Height)
}
