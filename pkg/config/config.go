package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryDSN string `env:"SENTRY_DSN"`
	}
	Telegram struct {
		Token        string  `env:"TELEGRAM_TOKEN" env-required:"true"`
		AllowedChats []int64 `env:"TELEGRAM_ALLOWED_CHATS" env-separator:","`
	}
	RateLimit struct {
		Capacity      int           `env:"RATE_LIMIT_CAPACITY" env-default:"5"`
		Window        time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"60s"`
		MaxIdentities int           `env:"RATE_LIMIT_MAX_IDENTITIES" env-default:"10000"`
		Retention     time.Duration `env:"RATE_LIMIT_RETENTION" env-default:"10m"`
	}
	Extractor struct {
		PrimaryTimeout    time.Duration `env:"EXTRACTOR_PRIMARY_TIMEOUT" env-default:"30s"`
		DownloaderTimeout time.Duration `env:"EXTRACTOR_DOWNLOADER_TIMEOUT" env-default:"90s"`
		BrowserTimeout    time.Duration `env:"EXTRACTOR_BROWSER_TIMEOUT" env-default:"120s"`
	}
	Fetcher struct {
		MaxConcurrent     int           `env:"FETCH_MAX_CONCURRENT" env-default:"3"`
		MaxFileSizeMB     int           `env:"FETCH_MAX_FILE_SIZE_MB" env-default:"50"`
		DownloadTimeout   time.Duration `env:"FETCH_DOWNLOAD_TIMEOUT" env-default:"30s"`
		MaxImageDimension int           `env:"FETCH_MAX_IMAGE_DIMENSION" env-default:"1920"`
		JPEGQuality       int           `env:"FETCH_JPEG_QUALITY" env-default:"85"`
	}
	Credentials struct {
		CookiesFile        string `env:"COOKIES_FILE"`
		TwitterBearerToken string `env:"TWITTER_BEARER_TOKEN"`
		RedditClientID     string `env:"REDDIT_CLIENT_ID"`
		RedditClientSecret string `env:"REDDIT_CLIENT_SECRET"`
		GithubToken        string `env:"GITHUB_TOKEN"`
	}
	Instagram struct {
		SessionPath string `env:"INSTAGRAM_SESSION_PATH" env-default:"./goinsta-session"`
	}
	YtDlp struct {
		Binary        string        `env:"YTDLP_BINARY" env-default:"yt-dlp"`
		SocketTimeout time.Duration `env:"YTDLP_SOCKET_TIMEOUT" env-default:"30s"`
	}
	Browser struct {
		Enabled  bool `env:"BROWSER_ENABLED" env-default:"true"`
		Headless bool `env:"BROWSER_HEADLESS" env-default:"true"`
	}
	Postgres struct {
		Enabled bool   `env:"POSTGRES_ENABLED" env-default:"false"`
		Port    int    `env:"POSTGRES_PORT" env-default:"5432"`
		Host    string `env:"POSTGRES_HOST" env-default:"localhost"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	}
	Journal struct {
		Retention time.Duration `env:"JOURNAL_RETENTION" env-default:"720h"`
	}
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}

// GetDSN builds a postgres connection string from the Postgres section.
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Pass,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.Name,
		c.Postgres.SslMode,
	)
}

// MaxFileSize returns the per-item download ceiling in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Fetcher.MaxFileSizeMB) * 1024 * 1024
}

// AllowsChat reports whether chatID may use the bot. An empty list allows everyone.
func (c *Config) AllowsChat(chatID int64) bool {
	if len(c.Telegram.AllowedChats) == 0 {
		return true
	}
	for _, id := range c.Telegram.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}
