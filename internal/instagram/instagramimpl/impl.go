package instagramimpl

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/Davincible/goinsta/v3"
	"github.com/orgball2608/media-extractor-bot/internal/instagram"
	"github.com/orgball2608/media-extractor-bot/pkg/config"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
	"go.uber.org/fx"
)

type InstaImpl struct {
	sessionPath string
	logger      logger.Logger

	mu     sync.Mutex
	client *goinsta.Instagram
}

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

func New(opts Opts) instagram.Client {
	return &InstaImpl{
		sessionPath: opts.Config.Instagram.SessionPath,
		logger:      opts.Logger.WithComponent("instagram"),
	}
}

var _ instagram.Client = (*InstaImpl)(nil)

// session loads the exported goinsta session on first use. A missing file is
// not cached so a session dropped in later is picked up.
func (ig *InstaImpl) session() (*goinsta.Instagram, error) {
	ig.mu.Lock()
	defer ig.mu.Unlock()

	if ig.client != nil {
		return ig.client, nil
	}

	if ig.sessionPath == "" {
		return nil, instagram.ErrNoSession
	}
	if _, err := os.Stat(ig.sessionPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", instagram.ErrNoSession, ig.sessionPath)
	}

	client, err := goinsta.Import(ig.sessionPath)
	if err != nil {
		return nil, fmt.Errorf("failed to import session: %w", err)
	}

	ig.logger.Info("Instagram session loaded", "path", ig.sessionPath)
	ig.client = client
	return client, nil
}

func (ig *InstaImpl) GetPost(ctx context.Context, shortcode string) (*instagram.Post, error) {
	client, err := ig.session()
	if err != nil {
		return nil, err
	}

	id, err := goinsta.MediaIDFromShortID(shortcode)
	if err != nil {
		return nil, fmt.Errorf("invalid shortcode %q: %w", shortcode, err)
	}

	type result struct {
		media *goinsta.FeedMedia
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ig.logger.Error("Panic in Instagram media lookup", "panic", r)
				done <- result{err: fmt.Errorf("instagram client panic: %v", r)}
			}
		}()
		media, err := client.GetMedia(id)
		done <- result{media: media, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, fmt.Errorf("failed to get media %s: %w", shortcode, res.err)
	}
	if len(res.media.Items) == 0 {
		return nil, fmt.Errorf("media %s has no items", shortcode)
	}

	item := res.media.Items[0]
	post := &instagram.Post{
		Username: item.User.Username,
		Caption:  item.Caption.Text,
	}

	if len(item.CarouselMedia) > 0 {
		for i := range item.CarouselMedia {
			if m, ok := toMedia(&item.CarouselMedia[i]); ok {
				post.Media = append(post.Media, m)
			}
		}
	} else if m, ok := toMedia(item); ok {
		post.Media = append(post.Media, m)
	}
	return post, nil
}

func toMedia(item *goinsta.Item) (instagram.Media, bool) {
	if len(item.Videos) > 0 {
		v := item.Videos[0]
		return instagram.Media{IsVideo: true, URL: v.URL, Width: v.Width, Height: v.Height}, true
	}
	if len(item.Images.Versions) > 0 {
		c := item.Images.Versions[0]
		return instagram.Media{URL: c.URL, Width: c.Width, Height: c.Height}, true
	}
	return instagram.Media{}, false
}
