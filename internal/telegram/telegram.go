package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/orgball2608/media-extractor-bot/internal/domain"
)

//go:generate mockgen -source=telegram.go -destination=mocks/mock.go

type Client interface {
	GetUpdatesChan(u tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()

	// SendMessage sends an HTML formatted text message, optionally as a reply.
	SendMessage(ctx context.Context, chatID int64, replyTo int, text string) (int, error)
	// SendChatAction shows a status such as "upload_video" until the next message.
	SendChatAction(chatID int64, action string) error
	// SendResult delivers an extraction result as a photo, video, animation,
	// media group or text message depending on what it holds.
	SendResult(ctx context.Context, chatID int64, replyTo int, res *domain.ScrapedMedia, spoiler bool) error
}
