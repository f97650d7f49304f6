package domain

import "time"

// MaxItems is the largest number of items a single delivery can carry.
const MaxItems = 10

type MediaKind string

const (
	KindImage         MediaKind = "image"
	KindVideo         MediaKind = "video"
	KindAnimatedImage MediaKind = "animated-image"
)

type MediaType string

const (
	MediaTypePhoto      MediaType = "photo"
	MediaTypeVideo      MediaType = "video"
	MediaTypeMixedGroup MediaType = "mixed-group"
	MediaTypeTextOnly   MediaType = "text-only"
	MediaTypeNone       MediaType = "none"
)

// Method names the extraction tier that produced a result.
type Method string

const (
	MethodAPI                 Method = "api"
	MethodUniversalDownloader Method = "universal-downloader"
	MethodHeadlessBrowser     Method = "headless-browser"
)

// MediaItem is a single image or video. It holds either Data or only a RemoteURL.
type MediaItem struct {
	Kind      MediaKind
	Data      []byte
	RemoteURL string
	Width     int
	Height    int
	Duration  time.Duration
	Spoiler   bool
}

func (m *MediaItem) Resolved() bool {
	return len(m.Data) > 0
}

func (m *MediaItem) Pending() bool {
	return !m.Resolved() && m.RemoteURL != ""
}

// ScrapedMedia is the result of one extraction.
type ScrapedMedia struct {
	MediaType          MediaType
	Items              []*MediaItem
	Caption            string
	Author             string
	SourceURL          string
	Platform           Platform
	MethodUsed         Method
	ExtractionDuration time.Duration
}

func (s *ScrapedMedia) HasMedia() bool {
	return len(s.Items) > 0
}

// Empty reports whether the result carries nothing deliverable.
func (s *ScrapedMedia) Empty() bool {
	return len(s.Items) == 0 && s.Caption == "" && s.Author == ""
}

// PendingCount returns how many items still need their bytes fetched.
func (s *ScrapedMedia) PendingCount() int {
	n := 0
	for _, item := range s.Items {
		if item.Pending() {
			n++
		}
	}
	return n
}

// Truncate keeps the first n items.
func (s *ScrapedMedia) Truncate(n int) {
	if len(s.Items) > n {
		s.Items = s.Items[:n]
	}
}

// Normalize recomputes MediaType from the current items.
func (s *ScrapedMedia) Normalize() {
	switch len(s.Items) {
	case 0:
		if s.Caption != "" || s.Author != "" {
			s.MediaType = MediaTypeTextOnly
		} else {
			s.MediaType = MediaTypeNone
		}
	case 1:
		if s.Items[0].Kind == KindVideo {
			s.MediaType = MediaTypeVideo
		} else {
			s.MediaType = MediaTypePhoto
		}
	default:
		s.MediaType = MediaTypeMixedGroup
	}
}
