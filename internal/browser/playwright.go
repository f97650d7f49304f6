package browser

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/orgball2608/media-extractor-bot/pkg/config"
	"github.com/orgball2608/media-extractor-bot/pkg/httpclient"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/fx"
)

const defaultNavigationTimeout = 60 * time.Second

// PlaywrightManager owns a Chromium instance that is launched on first use.
type PlaywrightManager struct {
	mu       sync.Mutex
	pw       *playwright.Playwright
	browser  playwright.Browser
	headless bool
	logger   logger.Logger
}

var _ Backend = (*PlaywrightManager)(nil)

type Opts struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Logger logger.Logger
}

// New returns the Playwright backend, or Disabled when the browser is turned off.
func New(opts Opts) Backend {
	if !opts.Config.Browser.Enabled {
		opts.Logger.Info("Headless browser disabled")
		return Disabled{}
	}

	manager := &PlaywrightManager{
		headless: opts.Config.Browser.Headless,
		logger:   opts.Logger.WithComponent("Playwright"),
	}

	opts.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return manager.Close()
		},
	})
	return manager
}

func (pm *PlaywrightManager) ensureBrowser() (playwright.Browser, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.browser != nil && pm.browser.IsConnected() {
		return pm.browser, nil
	}

	pm.logger.Info("Launching Playwright browser...")
	if pm.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("could not start playwright: %w", err)
		}
		pm.pw = pw
	}

	browser, err := pm.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(pm.headless),
		Args: []string{
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-dev-shm-usage",
			"--disable-accelerated-2d-canvas",
			"--no-first-run",
			"--no-zygote",
			"--disable-gpu",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	pm.browser = browser
	pm.logger.Info("Playwright browser launched")
	return browser, nil
}

func (pm *PlaywrightManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.browser != nil {
		pm.logger.Info("Shutting down Playwright browser...")
		if err := pm.browser.Close(); err != nil {
			pm.logger.Error("Failed to close playwright browser", "error", err)
		}
		pm.browser = nil
	}
	if pm.pw != nil {
		if err := pm.pw.Stop(); err != nil {
			pm.logger.Error("Failed to stop playwright", "error", err)
			return err
		}
		pm.pw = nil
		pm.logger.Info("Playwright stopped successfully.")
	}
	return nil
}

func (pm *PlaywrightManager) Render(ctx context.Context, url string, opts RenderOptions) (string, error) {
	page, cleanup, err := pm.newPage(ctx, url, opts)
	if err != nil {
		return "", err
	}
	defer cleanup()

	if opts.WaitSelector != "" {
		_, err := page.WaitForSelector(opts.WaitSelector, playwright.PageWaitForSelectorOptions{
			Timeout: playwright.Float(remainingMillis(ctx, 15*time.Second)),
		})
		if err != nil {
			pm.logger.Debug("Wait selector did not appear, using current content", "selector", opts.WaitSelector, "error", err)
		}
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("could not read page content: %w", err)
	}
	return html, nil
}

// newPage opens url in a fresh context that blocks heavy resources.
func (pm *PlaywrightManager) newPage(ctx context.Context, url string, opts RenderOptions) (playwright.Page, func(), error) {
	browser, err := pm.ensureBrowser()
	if err != nil {
		return nil, nil, err
	}

	brContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(httpclient.UserAgent),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create browser context: %w", err)
	}

	cleanup := func() {
		_ = brContext.Close()
		debug.FreeOSMemory()
	}

	if len(opts.Cookies) > 0 {
		cookies := make([]playwright.OptionalCookie, 0, len(opts.Cookies))
		for _, c := range opts.Cookies {
			cookies = append(cookies, playwright.OptionalCookie{
				Name:   c.Name,
				Value:  c.Value,
				Domain: playwright.String(c.Domain),
				Path:   playwright.String(c.Path),
			})
		}
		if err := brContext.AddCookies(cookies); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("could not add cookies: %w", err)
		}
	}

	if err := setupRequestInterception(brContext); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to set up request interception: %w", err)
	}

	page, err := brContext.NewPage()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("could not create new page: %w", err)
	}

	if err := navigate(ctx, page, url); err != nil {
		cleanup()
		return nil, nil, err
	}

	return page, cleanup, nil
}

// navigate loads url once, bounded by the context deadline. A failed load is
// returned as is; trying again is up to the caller.
func navigate(ctx context.Context, page playwright.Page, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(remainingMillis(ctx, defaultNavigationTimeout)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("could not goto page '%s': %w", url, err)
	}
	return nil
}

// setupRequestInterception blocks resources that are not needed to read the markup.
func setupRequestInterception(ctx playwright.BrowserContext) error {
	return ctx.Route("**/*", func(route playwright.Route) {
		switch route.Request().ResourceType() {
		case "image", "stylesheet", "font", "media":
			_ = route.Abort()
		default:
			_ = route.Continue()
		}
	})
}

func remainingMillis(ctx context.Context, fallback time.Duration) float64 {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < fallback {
			if left < time.Second {
				left = time.Second
			}
			return float64(left.Milliseconds())
		}
	}
	return float64(fallback.Milliseconds())
}
