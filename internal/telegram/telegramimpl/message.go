package telegramimpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/pkg/formatter"
)

// SendMessage sends an HTML message to a chat
func (tg *TelegramImpl) SendMessage(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	msg := newTextMessage(chatID, replyTo, text)

	var sent tgbotapi.Message
	err := tg.send(ctx, "SendMessage", func() error {
		var err error
		sent, err = tg.TgBot.Send(msg)
		return err
	})
	if err != nil {
		tg.Logger.Error("Error sending message", "chatID", chatID, "error", err)
		return 0, fmt.Errorf("failed to send message: %w", err)
	}

	return sent.MessageID, nil
}

func (tg *TelegramImpl) SendChatAction(chatID int64, action string) error {
	_, err := tg.TgBot.Request(tgbotapi.NewChatAction(chatID, action))
	return err
}

// SendResult delivers res in the shape its media type calls for
func (tg *TelegramImpl) SendResult(ctx context.Context, chatID int64, replyTo int, res *domain.ScrapedMedia, spoiler bool) error {
	log := tg.Logger.With("chatID", chatID, "platform", res.Platform.String(), "media_type", res.MediaType)

	var err error
	switch {
	case len(res.Items) == 0:
		_, err = tg.SendMessage(ctx, chatID, replyTo, textBody(res))
	case len(res.Items) == 1:
		upload := newSingleUpload(chatID, replyTo, res.Items[0], formatter.FormatCaption(res.Author, res.Caption, res.SourceURL), spoiler)
		err = tg.send(ctx, upload.endpoint, func() error {
			_, err := tg.TgBot.UploadFiles(upload.endpoint, upload.params, upload.files)
			return err
		})
	default:
		group := newMediaGroup(chatID, replyTo, res.Items, formatter.FormatCaption(res.Author, res.Caption, res.SourceURL))
		err = tg.send(ctx, "SendMediaGroup", func() error {
			_, err := tg.TgBot.SendMediaGroup(group)
			return err
		})
	}
	if err != nil {
		log.Error("Error delivering result", "error", err)
		return fmt.Errorf("failed to deliver %s: %w", res.MediaType, err)
	}

	log.Info("Result delivered", "items", len(res.Items))
	return nil
}

func textBody(res *domain.ScrapedMedia) string {
	body := formatter.FormatText(res.Author, res.Caption)
	if res.SourceURL == "" {
		return body
	}
	link := formatter.FormatCaption("", "", res.SourceURL)
	return formatter.Truncate(body, formatter.MaxMessageLength-len([]rune(link))-2) + "\n\n" + link
}

func newTextMessage(chatID int64, replyTo int, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = replyTo
	msg.DisableWebPagePreview = true
	return msg
}

type singleUpload struct {
	endpoint string
	params   tgbotapi.Params
	files    []tgbotapi.RequestFile
}

// newSingleUpload builds the raw request for one item. The typed configs of
// the bot library cannot carry has_spoiler, so the params are set directly.
func newSingleUpload(chatID int64, replyTo int, item *domain.MediaItem, caption string, spoiler bool) singleUpload {
	endpoint, field, name := "sendPhoto", "photo", "photo.jpg"
	switch item.Kind {
	case domain.KindVideo:
		endpoint, field, name = "sendVideo", "video", "video.mp4"
	case domain.KindAnimatedImage:
		endpoint, field, name = "sendAnimation", "animation", "animation.gif"
	}

	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero("reply_to_message_id", replyTo)
	params.AddNonEmpty("caption", caption)
	if caption != "" {
		params["parse_mode"] = tgbotapi.ModeHTML
	}
	params.AddBool("has_spoiler", spoiler || item.Spoiler)
	if item.Kind == domain.KindVideo {
		params.AddNonZero("width", item.Width)
		params.AddNonZero("height", item.Height)
		params.AddNonZero("duration", int(item.Duration.Seconds()))
		params.AddBool("supports_streaming", true)
	}

	return singleUpload{
		endpoint: endpoint,
		params:   params,
		files:    []tgbotapi.RequestFile{{Name: field, Data: tgbotapi.FileBytes{Name: name, Bytes: item.Data}}},
	}
}

// newMediaGroup builds an album with the caption on the first item. Albums
// only hold photos and videos, so animated images go in as photos.
func newMediaGroup(chatID int64, replyTo int, items []*domain.MediaItem, caption string) tgbotapi.MediaGroupConfig {
	media := make([]interface{}, 0, len(items))
	for i, item := range items {
		if i == domain.MaxItems {
			break
		}

		first := i == 0 && caption != ""
		if item.Kind == domain.KindVideo {
			v := tgbotapi.NewInputMediaVideo(tgbotapi.FileBytes{Name: fmt.Sprintf("video%d.mp4", i), Bytes: item.Data})
			v.Width, v.Height = item.Width, item.Height
			v.Duration = int(item.Duration.Seconds())
			v.SupportsStreaming = true
			if first {
				v.Caption, v.ParseMode = caption, tgbotapi.ModeHTML
			}
			media = append(media, v)
			continue
		}

		p := tgbotapi.NewInputMediaPhoto(tgbotapi.FileBytes{Name: fmt.Sprintf("photo%d.jpg", i), Bytes: item.Data})
		if first {
			p.Caption, p.ParseMode = caption, tgbotapi.ModeHTML
		}
		media = append(media, p)
	}

	group := tgbotapi.NewMediaGroup(chatID, media)
	group.ReplyToMessageID = replyTo
	return group
}

// retryable reports whether a send error is worth another attempt.
func retryable(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	var syntaxErr *json.SyntaxError
	return !errors.As(err, &syntaxErr)
}
