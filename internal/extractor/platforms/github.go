package platforms

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
	"github.com/orgball2608/media-extractor-bot/internal/extractor"
	"github.com/orgball2608/media-extractor-bot/pkg/formatter"
	"github.com/orgball2608/media-extractor-bot/pkg/httpclient"
)

const (
	githubAPI = "https://api.github.com"

	githubMaxFiles = 10
	githubMaxBody  = 300
)

var (
	githubCommitRe = regexp.MustCompile(`github\.com/([\w\-.]+)/([\w\-.]+)/commit/([0-9a-f]+)`)
	githubPullRe   = regexp.MustCompile(`github\.com/([\w\-.]+)/([\w\-.]+)/pull/(\d+)`)
)

// GitHub renders commits and pull requests as text.
type GitHub struct {
	extractor.Base

	APIBase string
	Token   string
}

func NewGitHub(deps extractor.Deps, token string) *GitHub {
	return &GitHub{Base: extractor.Base{Deps: deps}, APIBase: githubAPI, Token: token}
}

func (g *GitHub) Platform() domain.Platform {
	return domain.PlatformGithub
}

func (g *GitHub) Primary(ctx context.Context, url string) (*domain.ScrapedMedia, error) {
	if m := githubCommitRe.FindStringSubmatch(url); m != nil {
		return g.commit(ctx, url, m[1], m[2], m[3])
	}
	if m := githubPullRe.FindStringSubmatch(url); m != nil {
		return g.pullRequest(ctx, url, m[1], m[2], m[3])
	}
	return nil, domain.NewFailure(domain.FailureUnsupported, "not a commit or pull request url")
}

func (g *GitHub) Secondary(context.Context, string) (*domain.ScrapedMedia, error) {
	return nil, extractor.ErrNotSupported
}

func (g *GitHub) Tertiary(context.Context, string) (*domain.ScrapedMedia, error) {
	return nil, extractor.ErrNotSupported
}

func (g *GitHub) headers() map[string]string {
	h := map[string]string{"Accept": "application/vnd.github.v3+json"}
	if g.Token != "" {
		h["Authorization"] = "Bearer " + g.Token
	}
	return h
}

type githubCommit struct {
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"commit"`
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
	Files []struct {
		Status   string `json:"status"`
		Filename string `json:"filename"`
	} `json:"files"`
}

func (g *GitHub) commit(ctx context.Context, url, owner, repo, sha string) (*domain.ScrapedMedia, error) {
	var c githubCommit
	apiURL := fmt.Sprintf("%s/repos/%s/%s/commits/%s", g.APIBase, owner, repo, sha)
	if err := httpclient.GetJSON(ctx, g.HTTP, apiURL, g.headers(), &c); err != nil {
		return nil, err
	}

	author := c.Commit.Author.Name
	if author == "" {
		author = "Unknown"
	}

	short := sha
	if len(short) > 8 {
		short = short[:8]
	}

	lines := []string{
		"Commit: " + short,
		"Author: " + author,
		"Message: " + c.Commit.Message,
		"",
		fmt.Sprintf("+%s -%s in %d file(s)",
			formatter.FormatNumber(c.Stats.Additions), formatter.FormatNumber(c.Stats.Deletions), len(c.Files)),
	}
	for i, f := range c.Files {
		if i == githubMaxFiles {
			break
		}
		lines = append(lines, fmt.Sprintf("  %s %s", f.Status, f.Filename))
	}

	return &domain.ScrapedMedia{
		Author:    author,
		Caption:   strings.Join(lines, "\n"),
		SourceURL: url,
	}, nil
}

type githubPull struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	State        string `json:"state"`
	Merged       bool   `json:"merged"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	ChangedFiles int    `json:"changed_files"`
	User         struct {
		Login string `json:"login"`
	} `json:"user"`
}

func (g *GitHub) pullRequest(ctx context.Context, url, owner, repo, number string) (*domain.ScrapedMedia, error) {
	var pr githubPull
	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%s", g.APIBase, owner, repo, number)
	if err := httpclient.GetJSON(ctx, g.HTTP, apiURL, g.headers(), &pr); err != nil {
		return nil, err
	}

	author := pr.User.Login
	if author == "" {
		author = "Unknown"
	}
	status := pr.State
	if pr.Merged {
		status = "merged"
	}

	lines := []string{
		fmt.Sprintf("PR #%s: %s", number, pr.Title),
		fmt.Sprintf("Author: %s | Status: %s", author, status),
		fmt.Sprintf("+%s -%s in %d file(s)",
			formatter.FormatNumber(pr.Additions), formatter.FormatNumber(pr.Deletions), pr.ChangedFiles),
	}
	if pr.Body != "" {
		body := []rune(pr.Body)
		preview := string(body)
		if len(body) > githubMaxBody {
			preview = string(body[:githubMaxBody]) + "..."
		}
		lines = append(lines, "", preview)
	}

	return &domain.ScrapedMedia{
		Author:    author,
		Caption:   strings.Join(lines, "\n"),
		SourceURL: url,
	}, nil
}
