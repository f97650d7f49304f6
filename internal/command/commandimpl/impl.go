package commandimpl

import (
	"github.com/orgball2608/media-extractor-bot/internal/command"
	"github.com/orgball2608/media-extractor-bot/internal/link"
	"github.com/orgball2608/media-extractor-bot/internal/telegram"
	"github.com/orgball2608/media-extractor-bot/pkg/config"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Telegram  telegram.Client
	Processor command.Processor
	Detector  *link.Detector
	Logger    logger.Logger
	Config    *config.Config
}

type CommandImpl struct {
	Telegram  telegram.Client
	Processor command.Processor
	Detector  *link.Detector
	Logger    logger.Logger
	Config    *config.Config
}

func New(opts Opts) *CommandImpl {
	return &CommandImpl{
		Telegram:  opts.Telegram,
		Processor: opts.Processor,
		Detector:  opts.Detector,
		Logger:    opts.Logger.WithComponent("Command"),
		Config:    opts.Config,
	}
}

var _ command.Client = (*CommandImpl)(nil)
