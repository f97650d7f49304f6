package link

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/orgball2608/media-extractor-bot/internal/domain"
)

const trailingPunct = ".,;:!?)\"'"

type pattern struct {
	platform domain.Platform
	re       *regexp.Regexp
}

// Patterns are tried in order; the first one matching at a position wins.
var patterns = []pattern{
	{domain.PlatformTwitter, regexp.MustCompile(`(?i)https?://(?:www\.|mobile\.)?(?:twitter\.com|x\.com)/\S+/status/\d+\S*`)},
	{domain.PlatformYouTube, regexp.MustCompile(`(?i)https?://(?:www\.|m\.)?(?:youtube\.com/(?:shorts/|watch\?v=)|youtu\.be/)\S+`)},
	{domain.PlatformInstagram, regexp.MustCompile(`(?i)https?://(?:www\.)?instagram\.com/(?:p|reel|reels|tv)/\S+`)},
	{domain.PlatformTikTok, regexp.MustCompile(`(?i)https?://(?:(?:www|vm|vt|m)\.)?tiktok\.com/\S+`)},
	{domain.PlatformFacebook, regexp.MustCompile(`(?i)https?://(?:www\.|m\.|web\.)?(?:facebook\.com|fb\.watch)/\S+`)},
	{domain.PlatformGithub, regexp.MustCompile(`(?i)https?://(?:www\.)?github\.com/[\w\-.]+/[\w\-.]+/(?:commit/[0-9a-f]+|pull/\d+)`)},
	{domain.PlatformReddit, regexp.MustCompile(`(?i)https?://(?:www\.|old\.|new\.)?reddit\.com/r/\S+`)},
}

var facebookTrackingParams = map[string]bool{
	"rdid": true, "share_url": true, "refsrc": true, "_rdr": true,
	"__tn__": true, "ref": true, "mibextid": true,
}

// DetectedLink is a supported link found in a message.
type DetectedLink struct {
	URL      string
	Platform domain.Platform
	Spoiler  bool

	// start is the byte offset of the match in the message text.
	start int
}

// Span is a message entity range in UTF-16 code units, as chat clients report them.
type Span struct {
	Offset int
	Length int
}

// Detector finds, classifies and cleans supported links.
type Detector struct{}

func New() *Detector {
	return &Detector{}
}

// Classify reports which platform url belongs to.
func (d *Detector) Classify(rawURL string) (domain.Platform, bool) {
	rawURL = strings.TrimSpace(rawURL)
	for _, p := range patterns {
		if loc := p.re.FindStringIndex(rawURL); loc != nil && loc[0] == 0 {
			return p.platform, true
		}
	}
	return "", false
}

// Clean strips query parameters that break extraction.
func (d *Detector) Clean(rawURL string, platform domain.Platform) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}

	switch platform {
	case domain.PlatformTikTok:
		u.RawQuery = ""
	case domain.PlatformReddit:
		q := u.Query()
		for k := range q {
			if strings.HasPrefix(k, "utm_") || k == "share" || k == "context" {
				q.Del(k)
			}
		}
		u.RawQuery = q.Encode()
	case domain.PlatformFacebook:
		q := u.Query()
		for k := range q {
			if facebookTrackingParams[k] {
				q.Del(k)
			}
		}
		u.RawQuery = q.Encode()
	default:
		return rawURL
	}
	return u.String()
}

type match struct {
	start, end int
	priority   int
	platform   domain.Platform
}

// Detect returns the supported links in text in the order they appear, with
// duplicates removed.
func (d *Detector) Detect(text string) []DetectedLink {
	var matches []match
	for i, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			matches = append(matches, match{start: loc[0], end: loc[1], priority: i, platform: p.platform})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].start != matches[j].start {
			return matches[i].start < matches[j].start
		}
		return matches[i].priority < matches[j].priority
	})

	var (
		links   []DetectedLink
		seen    = make(map[string]bool)
		lastEnd = -1
	)
	for _, m := range matches {
		if m.start < lastEnd {
			continue
		}
		lastEnd = m.end

		raw := strings.TrimRight(text[m.start:m.end], trailingPunct)
		cleaned := d.Clean(raw, m.platform)
		if seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		links = append(links, DetectedLink{
			URL:      cleaned,
			Platform: m.platform,
			start:    m.start,
		})
	}
	return links
}

// MarkSpoilers flags links that start inside one of the spoiler spans.
func (d *Detector) MarkSpoilers(text string, links []DetectedLink, spoilers []Span) []DetectedLink {
	if len(spoilers) == 0 {
		return links
	}

	marked := make([]DetectedLink, len(links))
	for i, l := range links {
		pos := utf16Offset(text, l.start)
		for _, s := range spoilers {
			if pos >= s.Offset && pos < s.Offset+s.Length {
				l.Spoiler = true
				break
			}
		}
		marked[i] = l
	}
	return marked
}

// utf16Offset converts a byte offset in s into UTF-16 code units.
func utf16Offset(s string, byteOffset int) int {
	n := 0
	for _, r := range s[:byteOffset] {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
