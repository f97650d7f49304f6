package telegramimpl

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/orgball2608/media-extractor-bot/internal/telegram"
	"github.com/orgball2608/media-extractor-bot/pkg/config"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
	"github.com/orgball2608/media-extractor-bot/pkg/retry"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type TelegramImpl struct {
	TgBot  *tgbotapi.BotAPI
	Logger logger.Logger
	Config *config.Config

	retry retry.Config
}

func New(opts Opts) (*TelegramImpl, error) {
	tgBot, err := tgbotapi.NewBotAPI(opts.Config.Telegram.Token)
	if err != nil {
		opts.Logger.Error("Error creating bot", "Error", err)
		return nil, err
	}

	opts.Logger.Info("Authorized on Telegram", "account", tgBot.Self.UserName)

	return &TelegramImpl{
		TgBot:  tgBot,
		Logger: opts.Logger.WithComponent("Telegram"),
		Config: opts.Config,
		retry:  retry.DefaultConfig(),
	}, nil
}

var _ telegram.Client = (*TelegramImpl)(nil)

func (tg *TelegramImpl) GetUpdatesChan(u tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return tg.TgBot.GetUpdatesChan(u)
}

func (tg *TelegramImpl) StopReceivingUpdates() {
	tg.TgBot.StopReceivingUpdates()
}

// send runs op with retries, giving up at once on errors Telegram will not
// accept on a second try.
func (tg *TelegramImpl) send(ctx context.Context, name string, op func() error) error {
	return retry.Do(ctx, tg.Logger, name, func() error {
		err := op()
		if err != nil && !retryable(err) {
			return retry.Permanent(err)
		}
		return err
	}, tg.retry)
}
