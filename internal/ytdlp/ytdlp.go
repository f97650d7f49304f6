package ytdlp

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

var videoExts = map[string]bool{
	"mp4": true, "webm": true, "mkv": true, "mov": true, "avi": true, "flv": true,
}

// Options are passed to the binary unmodified.
type Options struct {
	CookiesFile string
	ExtraArgs   []string
	// MaxFileSize caps the selected format, in bytes. Zero means no cap.
	MaxFileSize int64
}

// Metadata is what yt-dlp reports about a URL.
type Metadata struct {
	Title       string
	Description string
	Uploader    string
	Duration    time.Duration
	Ext         string
	Width       int
	Height      int
}

func (m Metadata) IsVideo() bool {
	return videoExts[strings.ToLower(strings.TrimPrefix(m.Ext, "."))]
}

// Result is a downloaded file.
type Result struct {
	Metadata
	Data []byte
}

// Info is metadata plus the best direct media url, without downloading.
type Info struct {
	Metadata
	URL string
}

//go:generate go run go.uber.org/mock/mockgen -source=ytdlp.go -destination=mocks/mock.go
type Downloader interface {
	// Download fetches the media into memory.
	Download(ctx context.Context, url string, opts Options) (*Result, error)

	// Info resolves metadata and a direct media url.
	Info(ctx context.Context, url string, opts Options) (*Info, error)
}

func extOf(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}
