package formatter

import (
	"html"
	"net/url"
	"strconv"
	"strings"
)

const (
	MaxCaptionLength = 1024
	MaxMessageLength = 4096

	ellipsis = "..."
)

// twitter links are shown through a mirror that does not require a login.
var twitterHosts = map[string]bool{
	"x.com": true, "www.x.com": true,
	"twitter.com": true, "www.twitter.com": true, "mobile.twitter.com": true,
}

// FormatNumber converts an integer to a string with commas as thousands separators.
// Example: 1234567 -> "1,234,567"
func FormatNumber(n int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		s = s[1:]
	}

	le := len(s)
	if le <= 3 {
		if n < 0 {
			return "-" + s
		}
		return s
	}

	sepCount := (le - 1) / 3

	res := make([]byte, le+sepCount)

	j := len(res) - 1
	for i := le - 1; i >= 0; i-- {
		res[j] = s[i]
		j--
		if (le-i)%3 == 0 && i > 0 {
			res[j] = ','
			j--
		}
	}

	if n < 0 {
		return "-" + string(res)
	}
	return string(res)
}

// FormatCaption builds the HTML caption for a media message: an author line,
// the caption and a link to the source. Text is escaped and cut to fit.
func FormatCaption(author, caption, sourceURL string) string {
	link := ""
	if sourceURL != "" {
		link = `<a href="` + html.EscapeString(MirrorURL(sourceURL)) + `">Link</a>`
	}

	body := formatBody(author, caption)
	if body == "" {
		return link
	}
	if link == "" {
		return Truncate(body, MaxCaptionLength)
	}

	sep := "\n\n"
	limit := MaxCaptionLength - len([]rune(link)) - len(sep)
	return Truncate(body, limit) + sep + link
}

// FormatText builds an HTML message for a post without media.
func FormatText(author, caption string) string {
	body := formatBody(author, caption)
	if body == "" {
		return "(no content)"
	}
	return Truncate(body, MaxMessageLength)
}

func formatBody(author, caption string) string {
	var parts []string
	if author = strings.TrimSpace(author); author != "" {
		parts = append(parts, html.EscapeString(author)+":")
	}
	if caption = strings.TrimSpace(caption); caption != "" {
		parts = append(parts, html.EscapeString(caption))
	}
	return strings.Join(parts, "\n")
}

// MirrorURL rewrites twitter links to xcancel.com and returns others unchanged.
func MirrorURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || !twitterHosts[strings.ToLower(u.Host)] {
		return rawURL
	}
	u.Host = "xcancel.com"
	return u.String()
}

// Truncate cuts s to at most max runes, ending with "...". It never splits a
// rune, an HTML entity or a tag.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= len(ellipsis) {
		return string(runes[:max])
	}

	cut := string(runes[:max-len(ellipsis)])
	if amp := strings.LastIndex(cut, "&"); amp > strings.LastIndex(cut, ";") {
		cut = cut[:amp]
	}
	if lt := strings.LastIndex(cut, "<"); lt > strings.LastIndex(cut, ">") {
		cut = cut[:lt]
	}
	return cut + ellipsis
}
