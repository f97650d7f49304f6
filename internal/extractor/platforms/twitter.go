package platforms

import (
	"context"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/internal/extractor"
	"github.com/orgball2608/media-extractor-bot/pkg/httpclient"
)

const vxTwitterAPI = "https://api.vxtwitter.com"

type Twitter struct {
	extractor.Base

	// APIBase replaces the host of the status url for the JSON lookup.
	APIBase string
}

func NewTwitter(deps extractor.Deps, bearerToken string) *Twitter {
	t := &Twitter{
		Base:    extractor.Base{Deps: deps},
		APIBase: vxTwitterAPI,
	}
	if bearerToken != "" {
		t.ExtraArgs = []string{"--extractor-args", "twitter:bearer_token=" + bearerToken}
	}
	return t
}

func (t *Twitter) Platform() domain.Platform {
	return domain.PlatformTwitter
}

type vxTweet struct {
	Text          string `json:"text"`
	UserName      string `json:"user_name"`
	UserScreen    string `json:"user_screen_name"`
	MediaExtended []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
		Size struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"size"`
	} `json:"media_extended"`
}

func (t *Twitter) Primary(ctx context.Context, url string) (*domain.ScrapedMedia, error) {
	apiURL, err := rebase(url, t.APIBase)
	if err != nil {
		return nil, err
	}

	var tweet vxTweet
	if err := httpclient.GetJSON(ctx, t.HTTP, apiURL, nil, &tweet); err != nil {
		return nil, err
	}

	res := &domain.ScrapedMedia{
		Caption:   tweet.Text,
		Author:    tweet.UserName,
		SourceURL: url,
	}
	if res.Author == "" {
		res.Author = tweet.UserScreen
	}

	for _, m := range tweet.MediaExtended {
		var kind domain.MediaKind
		switch m.Type {
		case "image":
			kind = domain.KindImage
		case "video":
			kind = domain.KindVideo
		case "gif":
			kind = domain.KindAnimatedImage
		default:
			continue
		}
		res.Items = append(res.Items, &domain.MediaItem{
			Kind:      kind,
			RemoteURL: m.URL,
			Width:     m.Size.Width,
			Height:    m.Size.Height,
		})
	}
	return res, nil
}
