package ytdlp

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeScript = `#!/bin/sh
out=""
prev=""
dump=0
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  if [ "$a" = "--dump-json" ]; then dump=1; fi
  if [ "$a" = "https://fail.example/video" ]; then echo "ERROR: Unsupported URL: $a" >&2; exit 1; fi
  prev="$a"
done
if [ "$dump" = "1" ]; then
  printf '{"title":"Clip","channel":"Chan","duration":3.5,"ext":"mp4","formats":[{"url":"https://cdn.example/low.mp4"},{"url":"https://cdn.example/best.mp4"}]}'
  exit 0
fi
dir=$(dirname "$out")
printf 'videobytes' > "$dir/media.mp4"
printf '{"title":"Clip","description":"desc","uploader":"someone","duration":12.5,"ext":"mp4","width":720,"height":1280}' > "$dir/media.info.json"
`

func fakeBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake needs a unix shell")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte(fakeScript), 0o755))
	return path
}

func TestExec_Download(t *testing.T) {
	e := New(fakeBinary(t), 10*time.Second, logger.NewNop())

	res, err := e.Download(context.Background(), "https://www.tiktok.com/@a/video/1", Options{MaxFileSize: 50 * 1024 * 1024})

	require.NoError(t, err)
	assert.Equal(t, []byte("videobytes"), res.Data)
	assert.Equal(t, "Clip", res.Title)
	assert.Equal(t, "desc", res.Description)
	assert.Equal(t, "someone", res.Uploader)
	assert.Equal(t, 12500*time.Millisecond, res.Duration)
	assert.Equal(t, 720, res.Width)
	assert.True(t, res.IsVideo())
}

func TestExec_DownloadTooLarge(t *testing.T) {
	e := New(fakeBinary(t), 0, logger.NewNop())

	_, err := e.Download(context.Background(), "https://www.tiktok.com/@a/video/1", Options{MaxFileSize: 4})

	var failure *domain.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, domain.FailureSizeExceeded, failure.Kind)
}

func TestExec_Info(t *testing.T) {
	e := New(fakeBinary(t), 0, logger.NewNop())

	info, err := e.Info(context.Background(), "https://youtu.be/abc", Options{})

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/best.mp4", info.URL)
	assert.Equal(t, "Chan", info.Uploader, "uploader falls back to channel")
	assert.Equal(t, 3500*time.Millisecond, info.Duration)
}

func TestExec_FailureIsClassified(t *testing.T) {
	e := New(fakeBinary(t), 0, logger.NewNop())

	_, err := e.Download(context.Background(), "https://fail.example/video", Options{})

	var failure *domain.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, domain.FailureUnsupported, failure.Kind)
	assert.Contains(t, failure.Detail, "Unsupported URL")
}

func TestExec_MissingBinary(t *testing.T) {
	e := New(filepath.Join(t.TempDir(), "nope"), 0, logger.NewNop())

	_, err := e.Info(context.Background(), "https://youtu.be/abc", Options{})

	var failure *domain.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, domain.FailureUnsupported, failure.Kind)
}

func TestMetadata_IsVideo(t *testing.T) {
	assert.True(t, Metadata{Ext: "webm"}.IsVideo())
	assert.True(t, Metadata{Ext: ".MOV"}.IsVideo())
	assert.False(t, Metadata{Ext: "jpg"}.IsVideo())
}
