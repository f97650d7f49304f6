package browser

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is the media-relevant content of a rendered document.
type Page struct {
	Title       string
	Description string
	SiteName    string
	Images      []string
	Videos      []string
}

// ParsePage collects Open Graph / Twitter card metadata and inline <video> sources.
// Relative urls are resolved against pageURL.
func ParsePage(html, pageURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, _ := url.Parse(pageURL)
	page := &Page{}
	seen := make(map[string]bool)

	add := func(list *[]string, raw string) {
		raw = strings.TrimSpace(strings.ReplaceAll(raw, "&amp;", "&"))
		if raw == "" || strings.HasPrefix(raw, "data:") || strings.HasPrefix(raw, "blob:") {
			return
		}
		if base != nil {
			if ref, err := base.Parse(raw); err == nil {
				raw = ref.String()
			}
		}
		if seen[raw] {
			return
		}
		seen[raw] = true
		*list = append(*list, raw)
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr("property")
		if key == "" {
			key, _ = s.Attr("name")
		}
		content, ok := s.Attr("content")
		if !ok {
			return
		}

		switch strings.ToLower(key) {
		case "og:title":
			page.Title = content
		case "og:description":
			page.Description = content
		case "og:site_name":
			page.SiteName = content
		case "og:image", "og:image:secure_url", "og:image:url", "twitter:image":
			add(&page.Images, content)
		case "og:video", "og:video:secure_url", "og:video:url", "twitter:player:stream":
			add(&page.Videos, content)
		}
	})

	doc.Find("video[src], video source[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(&page.Videos, src)
		}
	})

	return page, nil
}

// LoadCookies reads a Netscape-format cookies file, the format yt-dlp accepts.
func LoadCookies(path string) ([]Cookie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cookies file: %w", err)
	}
	defer f.Close()

	var cookies []Cookie
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "#HttpOnly_")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}
		cookies = append(cookies, Cookie{
			Domain: fields[0],
			Path:   fields[2],
			Name:   fields[5],
			Value:  fields[6],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cookies file: %w", err)
	}
	return cookies, nil
}
