package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/pkg/config"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
)

const outputName = "media"

type Exec struct {
	binary        string
	socketTimeout time.Duration
	logger        logger.Logger
}

func New(binary string, socketTimeout time.Duration, log logger.Logger) *Exec {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Exec{
		binary:        binary,
		socketTimeout: socketTimeout,
		logger:        log.WithComponent("YtDlp"),
	}
}

func NewFromConfig(cfg *config.Config, log logger.Logger) *Exec {
	return New(cfg.YtDlp.Binary, cfg.YtDlp.SocketTimeout, log)
}

var _ Downloader = (*Exec)(nil)

type infoJSON struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Uploader    string  `json:"uploader"`
	Channel     string  `json:"channel"`
	Creator     string  `json:"creator"`
	Duration    float64 `json:"duration"`
	Ext         string  `json:"ext"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Formats     []struct {
		URL string `json:"url"`
	} `json:"formats"`
}

func (i infoJSON) metadata() Metadata {
	uploader := i.Uploader
	if uploader == "" {
		uploader = i.Channel
	}
	if uploader == "" {
		uploader = i.Creator
	}
	return Metadata{
		Title:       i.Title,
		Description: i.Description,
		Uploader:    uploader,
		Duration:    time.Duration(i.Duration * float64(time.Second)),
		Ext:         i.Ext,
		Width:       i.Width,
		Height:      i.Height,
	}
}

func (e *Exec) Download(ctx context.Context, url string, opts Options) (*Result, error) {
	dir, err := os.MkdirTemp("", "ytdlp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	args := []string{
		"--no-playlist",
		"--no-progress",
		"--write-info-json",
		"-o", filepath.Join(dir, outputName+".%(ext)s"),
	}
	args = append(args, e.commonArgs(opts)...)
	args = append(args, url)

	e.logger.Debug("Running yt-dlp download", "url", url)
	if _, err := e.run(ctx, args); err != nil {
		return nil, err
	}

	mediaPath, err := findMedia(dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(mediaPath)
	if err != nil {
		return nil, fmt.Errorf("read downloaded file: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.NewFailure(domain.FailureParse, "yt-dlp produced an empty file")
	}
	if opts.MaxFileSize > 0 && int64(len(data)) > opts.MaxFileSize {
		return nil, domain.NewFailure(domain.FailureSizeExceeded, "downloaded file is %d bytes", len(data))
	}

	res := &Result{Data: data}
	if raw, err := os.ReadFile(filepath.Join(dir, outputName+".info.json")); err == nil {
		var info infoJSON
		if err := json.Unmarshal(raw, &info); err == nil {
			res.Metadata = info.metadata()
		}
	}
	if res.Ext == "" {
		res.Ext = extOf(mediaPath)
	}
	return res, nil
}

func (e *Exec) Info(ctx context.Context, url string, opts Options) (*Info, error) {
	args := []string{"--dump-json", "--no-download", "--no-playlist"}
	args = append(args, e.commonArgs(opts)...)
	args = append(args, url)

	out, err := e.run(ctx, args)
	if err != nil {
		return nil, err
	}

	var info infoJSON
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, domain.NewFailure(domain.FailureParse, "invalid yt-dlp json: %v", err)
	}

	mediaURL := info.URL
	if mediaURL == "" && len(info.Formats) > 0 {
		mediaURL = info.Formats[len(info.Formats)-1].URL
	}
	if mediaURL == "" {
		return nil, domain.NewFailure(domain.FailureParse, "yt-dlp reported no media url")
	}

	return &Info{Metadata: info.metadata(), URL: mediaURL}, nil
}

func (e *Exec) commonArgs(opts Options) []string {
	var args []string
	if e.socketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(int(e.socketTimeout.Seconds())))
	}
	if opts.MaxFileSize > 0 {
		mb := opts.MaxFileSize / (1024 * 1024)
		if mb < 1 {
			mb = 1
		}
		args = append(args,
			"-f", fmt.Sprintf("best[filesize<%dM]/best", mb),
			"--max-filesize", fmt.Sprintf("%dM", mb),
		)
	}
	if opts.CookiesFile != "" {
		args = append(args, "--cookies", opts.CookiesFile)
	}
	return append(args, opts.ExtraArgs...)
}

func (e *Exec) run(ctx context.Context, args []string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.Failure{Kind: domain.FailureUnsupported, Detail: "yt-dlp binary not available", Err: err}
		}
		return nil, &domain.Failure{Kind: classifyStderr(stderr.String()), Detail: tail(stderr.String(), 300), Err: err}
	}

	if strings.Contains(stderr.String(), "larger than max-filesize") {
		return nil, domain.NewFailure(domain.FailureSizeExceeded, "file is larger than max-filesize")
	}
	return stdout.Bytes(), nil
}

func findMedia(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read temp dir: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, outputName+".") {
			continue
		}
		if strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".part") {
			continue
		}
		return filepath.Join(dir, name), nil
	}
	return "", domain.NewFailure(domain.FailureParse, "yt-dlp produced no media file")
}

func classifyStderr(stderr string) domain.FailureKind {
	s := strings.ToLower(stderr)
	switch {
	case strings.Contains(s, "unsupported url"):
		return domain.FailureUnsupported
	case strings.Contains(s, "http error 429"), strings.Contains(s, "rate-limit"), strings.Contains(s, "rate limit"):
		return domain.FailureRateLimited
	case strings.Contains(s, "timed out"):
		return domain.FailureTimeout
	case strings.Contains(s, "unable to download"), strings.Contains(s, "http error"), strings.Contains(s, "connection"):
		return domain.FailureNetwork
	default:
		return domain.FailureParse
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
