package commandimpl

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/internal/link"
	pkgerrors "github.com/orgball2608/media-extractor-bot/pkg/errors"
)

const helpMessage = `👋 <b>Welcome to the Media Extractor Bot!</b>

Send or forward a message with a link and I will reply with its media.

<b>Supported:</b>
• X / Twitter posts
• Instagram posts and reels
• TikTok videos
• YouTube Shorts and videos
• Facebook videos and reels
• Reddit posts and galleries
• GitHub commits and pull requests

Wrap a link in a spoiler and the media comes back hidden too.

Type /help at any time to see this guide.`

// HandleCommand reads updates until ctx is done, handling each one in its own goroutine.
func (c *CommandImpl) HandleCommand(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := c.Telegram.GetUpdatesChan(u)
	c.Logger.Info("Command handler started, listening for updates.")

	for {
		select {
		case <-ctx.Done():
			c.Logger.Info("Command handler shutting down.")
			c.Telegram.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				c.Logger.Warn("Telegram updates channel closed unexpectedly. Restarting handler...")
				return errors.New("telegram updates channel closed")
			}

			go c.handleUpdate(ctx, update)
		}
	}
}

func (c *CommandImpl) handleUpdate(ctx context.Context, u tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			c.Logger.Error("Panic recovered while processing an update", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	msg := u.Message
	if msg == nil {
		return
	}
	if !c.Config.AllowsChat(msg.Chat.ID) {
		c.Logger.Debug("Ignoring message from chat outside the allow list", "chatID", msg.Chat.ID)
		return
	}

	start := time.Now()
	c.Logger.Info("Message received", "chatID", msg.Chat.ID, "from", senderName(msg), "text", preview(messageText(msg)))

	var err error
	if msg.IsCommand() {
		err = c.processCommand(ctx, msg)
	} else {
		err = c.processLinks(ctx, msg)
	}
	if err != nil {
		c.Logger.Error("Error processing message", "chatID", msg.Chat.ID, "error", err)
	}

	c.Logger.Debug("Message handled", "chatID", msg.Chat.ID, "elapsed", time.Since(start))
}

func (c *CommandImpl) processCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start", "help":
		_, err := c.Telegram.SendMessage(ctx, msg.Chat.ID, 0, helpMessage)
		return err
	default:
		// Commands meant for other bots in a group are not ours to answer.
		if !msg.Chat.IsPrivate() {
			return nil
		}
		_, err := c.Telegram.SendMessage(ctx, msg.Chat.ID, msg.MessageID, "Unknown command. Type /help to see what I can do.")
		return err
	}
}

// processLinks handles every supported link in the message, in the order they appear.
func (c *CommandImpl) processLinks(ctx context.Context, msg *tgbotapi.Message) error {
	text := messageText(msg)
	links := c.Detector.Detect(text)
	if len(links) == 0 {
		return nil
	}
	links = c.Detector.MarkSpoilers(text, links, spoilerSpans(msg))

	var errs []error
	for _, l := range links {
		if err := c.processLink(ctx, msg, l); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *CommandImpl) processLink(ctx context.Context, msg *tgbotapi.Message, l link.DetectedLink) error {
	chatID := msg.Chat.ID
	log := c.Logger.With("chatID", chatID, "platform", l.Platform.String(), "url", l.URL)

	if err := c.Telegram.SendChatAction(chatID, tgbotapi.ChatUploadDocument); err != nil {
		log.Debug("Failed to send chat action", "error", err)
	}

	res, err := c.Processor.Process(ctx, l.URL, identity(msg))
	if err != nil {
		reply := userMessage(l.Platform, err)
		if reply == "" {
			log.Info("Request dropped", "reason", pkgerrors.GetCode(err))
			return nil
		}
		if _, sendErr := c.Telegram.SendMessage(ctx, chatID, msg.MessageID, reply); sendErr != nil {
			return fmt.Errorf("failed to report error for %s: %w", l.URL, sendErr)
		}
		return nil
	}

	if err := c.Telegram.SendResult(ctx, chatID, msg.MessageID, res, l.Spoiler); err != nil {
		if _, sendErr := c.Telegram.SendMessage(ctx, chatID, msg.MessageID, "Could not send the media from this link."); sendErr != nil {
			log.Error("Failed to report delivery error", "error", sendErr)
		}
		return fmt.Errorf("failed to deliver %s: %w", l.URL, err)
	}
	return nil
}

// userMessage maps a pipeline error to the reply shown in chat. An empty
// string means the request is dropped without a reply.
func userMessage(platform domain.Platform, err error) string {
	switch {
	case pkgerrors.IsRateLimited(err):
		return "⏳ Too many requests. Please wait a minute and try again."
	case pkgerrors.IsUnsupportedPlatform(err):
		return ""
	case pkgerrors.IsDeliveryFailed(err):
		return "Could not download media from this link."
	case pkgerrors.IsExtractionFailed(err):
		return fmt.Sprintf("Failed to extract media from %s link.", platformName(platform))
	default:
		return "❌ Something went wrong, please try again later."
	}
}

func platformName(p domain.Platform) string {
	switch p {
	case domain.PlatformTwitter:
		return "X"
	case domain.PlatformYouTube:
		return "YouTube"
	case domain.PlatformTikTok:
		return "TikTok"
	case domain.PlatformGithub:
		return "GitHub"
	default:
		s := p.String()
		if s == "" {
			return "this"
		}
		return strings.ToUpper(s[:1]) + s[1:]
	}
}

// identity is the rate limit key: the sender, or the chat for channel posts.
func identity(msg *tgbotapi.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	return msg.Chat.ID
}

func messageText(msg *tgbotapi.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

func spoilerSpans(msg *tgbotapi.Message) []link.Span {
	entities := msg.Entities
	if msg.Text == "" {
		entities = msg.CaptionEntities
	}

	var spans []link.Span
	for _, e := range entities {
		if e.Type == "spoiler" {
			spans = append(spans, link.Span{Offset: e.Offset, Length: e.Length})
		}
	}
	return spans
}

func senderName(msg *tgbotapi.Message) string {
	if msg.From == nil {
		return ""
	}
	return msg.From.UserName
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) > 80 {
		return string(runes[:80])
	}
	return text
}
