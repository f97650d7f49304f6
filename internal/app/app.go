package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/orgball2608/media-extractor-bot/internal/browser"
	"github.com/orgball2608/media-extractor-bot/internal/command"
	"github.com/orgball2608/media-extractor-bot/internal/command/commandimpl"
	"github.com/orgball2608/media-extractor-bot/internal/extractor/platforms"
	"github.com/orgball2608/media-extractor-bot/internal/fetcher"
	"github.com/orgball2608/media-extractor-bot/internal/instagram/instagramimpl"
	"github.com/orgball2608/media-extractor-bot/internal/link"
	"github.com/orgball2608/media-extractor-bot/internal/orchestrator"
	"github.com/orgball2608/media-extractor-bot/internal/ratelimit"
	"github.com/orgball2608/media-extractor-bot/internal/repositories/journal"
	"github.com/orgball2608/media-extractor-bot/internal/telegram"
	"github.com/orgball2608/media-extractor-bot/internal/telegram/telegramimpl"
	"github.com/orgball2608/media-extractor-bot/internal/ytdlp"
	"github.com/orgball2608/media-extractor-bot/pkg/config"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
	"go.uber.org/fx"
)

const restartDelay = 5 * time.Second

var Module = fx.Module("app",
	fx.Provide(
		config.New,
		logger.FxOption,
	),
	fx.Provide(
		fx.Annotate(
			ratelimit.NewFromConfig,
			fx.As(new(ratelimit.Limiter)),
		),
		fx.Annotate(
			link.New,
			fx.As(fx.Self()),
			fx.As(new(orchestrator.Classifier)),
		),
		fx.Annotate(
			fetcher.NewFromConfig,
			fx.As(fx.Self()),
			fx.As(new(orchestrator.Fetcher)),
		),
		fx.Annotate(
			ytdlp.NewFromConfig,
			fx.As(new(ytdlp.Downloader)),
		),
		browser.New,
		instagramimpl.New,
		fx.Annotate(
			platforms.NewRegistry,
			fx.As(new(orchestrator.Resolver)),
		),
		fx.Annotate(
			orchestrator.New,
			fx.As(new(command.Processor)),
		),
		fx.Annotate(
			telegramimpl.New,
			fx.As(new(telegram.Client)),
		),
		fx.Annotate(
			commandimpl.New,
			fx.As(new(command.Client)),
		),
	),
	journal.Module,
	fx.Invoke(run),
)

func run(lc fx.Lifecycle, log logger.Logger, cfg *config.Config, cmdClient command.Client, repo journal.Repository) {
	ctx, cancel := context.WithCancel(context.Background())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           healthMux(log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go startHttpServer(log, server)

			cleaner := journal.NewCleaner(repo, cfg.Journal.Retention, log)
			if err := cleaner.Schedule(ctx); err != nil {
				log.Error("Journal cleanup not scheduled", "Error", err)
			}

			go handleCommands(ctx, log, cmdClient)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			return server.Shutdown(stopCtx)
		},
	})
}

// handleCommands keeps the update loop alive until ctx is cancelled.
func handleCommands(ctx context.Context, log logger.Logger, cmdClient command.Client) {
	for {
		err := cmdClient.HandleCommand(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Error("Command error", "Error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}

func startHttpServer(log logger.Logger, server *http.Server) {
	log.Info(fmt.Sprintf("Starting server on %s", server.Addr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server failed to start", "Error", err)
	}
}

func healthMux(log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthCheckHandler(w, r, log)
	})
	return mux
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request, logger logger.Logger) {
	logger.Debug("Health check request received", "Method", r.Method, "URL", r.URL.String())
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		logger.Error("Failed to write response", "Error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
