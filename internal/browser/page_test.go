package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head>
<meta property="og:title" content="A post">
<meta property="og:description" content="caption text">
<meta property="og:image" content="https://cdn.example/one.jpg?x=1&amp;y=2">
<meta name="twitter:image" content="https://cdn.example/one.jpg?x=1&y=2">
<meta property="og:video" content="/v/clip.mp4">
</head><body>
<video src="/v/clip.mp4"></video>
<video><source src="https://cdn.example/other.webm"></video>
<img src="data:image/png;base64,AAAA">
</body></html>`

func TestParsePage(t *testing.T) {
	page, err := ParsePage(samplePage, "https://www.facebook.com/watch/123")

	require.NoError(t, err)
	assert.Equal(t, "A post", page.Title)
	assert.Equal(t, "caption text", page.Description)
	assert.Equal(t, []string{"https://cdn.example/one.jpg?x=1&y=2"}, page.Images)
	assert.Equal(t, []string{"https://www.facebook.com/v/clip.mp4", "https://cdn.example/other.webm"}, page.Videos)
}

func TestParsePage_Empty(t *testing.T) {
	page, err := ParsePage("<html></html>", "https://example.com")

	require.NoError(t, err)
	assert.Empty(t, page.Images)
	assert.Empty(t, page.Videos)
}

func TestLoadCookies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	content := "# Netscape HTTP Cookie File\n" +
		".facebook.com\tTRUE\t/\tTRUE\t0\tc_user\t123\n" +
		"#HttpOnly_.facebook.com\tTRUE\t/\tTRUE\t0\txs\tsecret\n" +
		"broken line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cookies, err := LoadCookies(path)

	require.NoError(t, err)
	require.Len(t, cookies, 2)
	assert.Equal(t, Cookie{Domain: ".facebook.com", Path: "/", Name: "c_user", Value: "123"}, cookies[0])
	assert.Equal(t, "xs", cookies[1].Name)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Render(context.Background(), "https://example.com", RenderOptions{})
	assert.ErrorIs(t, err, ErrDisabled)
}
