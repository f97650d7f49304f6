package telegramimpl

import (
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSingleUpload_Photo(t *testing.T) {
	item := &domain.MediaItem{Kind: domain.KindImage, Data: []byte("jpeg")}

	u := newSingleUpload(10, 5, item, "<b>hi</b>", false)

	assert.Equal(t, "sendPhoto", u.endpoint)
	assert.Equal(t, "10", u.params["chat_id"])
	assert.Equal(t, "5", u.params["reply_to_message_id"])
	assert.Equal(t, "<b>hi</b>", u.params["caption"])
	assert.Equal(t, tgbotapi.ModeHTML, u.params["parse_mode"])
	assert.NotContains(t, u.params, "has_spoiler")

	require.Len(t, u.files, 1)
	assert.Equal(t, "photo", u.files[0].Name)
	assert.Equal(t, tgbotapi.FileBytes{Name: "photo.jpg", Bytes: []byte("jpeg")}, u.files[0].Data)
}

func TestNewSingleUpload_SpoilerVideo(t *testing.T) {
	item := &domain.MediaItem{Kind: domain.KindVideo, Data: []byte("mp4"), Width: 1280, Height: 720, Duration: 42 * time.Second}

	u := newSingleUpload(10, 0, item, "", true)

	assert.Equal(t, "sendVideo", u.endpoint)
	assert.Equal(t, "true", u.params["has_spoiler"])
	assert.Equal(t, "1280", u.params["width"])
	assert.Equal(t, "720", u.params["height"])
	assert.Equal(t, "42", u.params["duration"])
	assert.NotContains(t, u.params, "caption")
	assert.NotContains(t, u.params, "parse_mode")
	assert.NotContains(t, u.params, "reply_to_message_id")
	assert.Equal(t, "video", u.files[0].Name)
}

func TestNewSingleUpload_ItemSpoilerAnimation(t *testing.T) {
	item := &domain.MediaItem{Kind: domain.KindAnimatedImage, Data: []byte("gif"), Spoiler: true}

	u := newSingleUpload(10, 0, item, "", false)

	assert.Equal(t, "sendAnimation", u.endpoint)
	assert.Equal(t, "true", u.params["has_spoiler"])
	assert.Equal(t, "animation", u.files[0].Name)
}

func TestNewMediaGroup_CaptionOnFirstItem(t *testing.T) {
	items := []*domain.MediaItem{
		{Kind: domain.KindVideo, Data: []byte("v"), Width: 640, Height: 360},
		{Kind: domain.KindImage, Data: []byte("p")},
		{Kind: domain.KindAnimatedImage, Data: []byte("g")},
	}

	group := newMediaGroup(10, 3, items, "caption")

	assert.Equal(t, int64(10), group.ChatID)
	assert.Equal(t, 3, group.ReplyToMessageID)
	require.Len(t, group.Media, 3)

	first, ok := group.Media[0].(tgbotapi.InputMediaVideo)
	require.True(t, ok)
	assert.Equal(t, "caption", first.Caption)
	assert.Equal(t, tgbotapi.ModeHTML, first.ParseMode)
	assert.Equal(t, 640, first.Width)

	second, ok := group.Media[1].(tgbotapi.InputMediaPhoto)
	require.True(t, ok)
	assert.Empty(t, second.Caption)

	_, ok = group.Media[2].(tgbotapi.InputMediaPhoto)
	assert.True(t, ok, "animated images are sent as photos in an album")
}

func TestNewMediaGroup_CapsAtTen(t *testing.T) {
	items := make([]*domain.MediaItem, 12)
	for i := range items {
		items[i] = &domain.MediaItem{Kind: domain.KindImage, Data: []byte{byte(i)}}
	}

	group := newMediaGroup(1, 0, items, "")

	assert.Len(t, group.Media, domain.MaxItems)
}

func TestTextBody(t *testing.T) {
	res := &domain.ScrapedMedia{
		Author:    "octo",
		Caption:   "PR #1: fix <bug>",
		SourceURL: "https://github.com/octo/repo/pull/1",
	}

	body := textBody(res)

	assert.True(t, strings.HasPrefix(body, "octo:\nPR #1: fix &lt;bug&gt;"))
	assert.True(t, strings.HasSuffix(body, `<a href="https://github.com/octo/repo/pull/1">Link</a>`))
}

func TestTextBody_LongCaptionKeepsLink(t *testing.T) {
	res := &domain.ScrapedMedia{
		Caption:   strings.Repeat("a", 5000),
		SourceURL: "https://x.com/a/status/1",
	}

	body := textBody(res)

	assert.LessOrEqual(t, len([]rune(body)), 4096)
	assert.True(t, strings.HasSuffix(body, `<a href="https://xcancel.com/a/status/1">Link</a>`))
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(&tgbotapi.Error{Code: 429, Message: "Too Many Requests"}))
	assert.True(t, retryable(&tgbotapi.Error{Code: 502, Message: "Bad Gateway"}))
	assert.False(t, retryable(&tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}))
	assert.True(t, retryable(errors.New("connection reset by peer")))
}
