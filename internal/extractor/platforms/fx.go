package platforms

import (
	"github.com/orgball2608/media-extractor-bot/internal/browser"
	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/internal/extractor"
	"github.com/orgball2608/media-extractor-bot/internal/fetcher"
	"github.com/orgball2608/media-extractor-bot/internal/instagram"
	"github.com/orgball2608/media-extractor-bot/internal/ytdlp"
	"github.com/orgball2608/media-extractor-bot/pkg/config"
	"github.com/orgball2608/media-extractor-bot/pkg/httpclient"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Config     *config.Config
	Logger     logger.Logger
	Downloader ytdlp.Downloader
	Browser    browser.Backend
	Fetcher    *fetcher.MediaFetcher
	Instagram  instagram.Client
}

// NewRegistry builds the registry with every supported platform. Variants are
// constructed on first use.
func NewRegistry(opts Opts) *extractor.Registry {
	cfg := opts.Config
	log := opts.Logger.WithComponent("Extractor")

	registry := extractor.NewRegistry(extractor.Timeouts{
		Primary:   cfg.Extractor.PrimaryTimeout,
		Secondary: cfg.Extractor.DownloaderTimeout,
		Tertiary:  cfg.Extractor.BrowserTimeout,
	}, log)

	deps := extractor.Deps{
		Downloader:  opts.Downloader,
		Browser:     opts.Browser,
		Resolver:    opts.Fetcher,
		HTTP:        httpclient.New(httpclient.Config{Timeout: cfg.Extractor.PrimaryTimeout}),
		Logger:      log,
		MaxFileSize: cfg.MaxFileSize(),
	}
	Register(registry, cfg, deps, opts.Instagram)

	log.Info("Extractors registered", "platforms", registry.Platforms())
	return registry
}

// Register adds a factory for every platform.
func Register(r *extractor.Registry, cfg *config.Config, deps extractor.Deps, ig instagram.Client) {
	creds := cfg.Credentials

	r.Register(domain.PlatformTwitter, func() extractor.Variant {
		return NewTwitter(deps, creds.TwitterBearerToken)
	})
	r.Register(domain.PlatformYouTube, func() extractor.Variant {
		return NewYouTube(deps)
	})
	r.Register(domain.PlatformInstagram, func() extractor.Variant {
		return NewInstagram(deps, ig, creds.CookiesFile)
	})
	r.Register(domain.PlatformTikTok, func() extractor.Variant {
		return NewTikTok(deps)
	})
	r.Register(domain.PlatformFacebook, func() extractor.Variant {
		return NewFacebook(deps, creds.CookiesFile)
	})
	r.Register(domain.PlatformGithub, func() extractor.Variant {
		return NewGitHub(deps, creds.GithubToken)
	})
	r.Register(domain.PlatformReddit, func() extractor.Variant {
		return NewReddit(deps, creds.RedditClientID, creds.RedditClientSecret)
	})
}
