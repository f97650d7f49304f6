package instagram

import (
	"context"
	"errors"
	"regexp"
)

var (
	ErrNoSession = errors.New("instagram session is not available")
	ErrShortcode = errors.New("could not find instagram shortcode in url")
)

var shortcodeRe = regexp.MustCompile(`/(?:p|reel|reels|tv)/([A-Za-z0-9_-]+)`)

// Media is one entry of a post. Carousel posts have several.
type Media struct {
	IsVideo bool
	URL     string
	Width   int
	Height  int
}

type Post struct {
	Username string
	Caption  string
	Media    []Media
}

//go:generate go run go.uber.org/mock/mockgen -source=instagram.go -destination=mocks/mock.go
type Client interface {
	// GetPost looks up a post or reel by its shortcode.
	GetPost(ctx context.Context, shortcode string) (*Post, error)
}

// Shortcode extracts the post shortcode from a post, reel or tv url.
func Shortcode(url string) (string, error) {
	m := shortcodeRe.FindStringSubmatch(url)
	if m == nil {
		return "", ErrShortcode
	}
	return m[1], nil
}
