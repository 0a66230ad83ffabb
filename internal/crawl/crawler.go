// Package crawl fetches same-origin pages for URL ingestion. The crawler is
// a breadth-first walk bounded by depth, page count, and total characters,
// honoring robots.txt and a per-request rate limit.
package crawl

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deskmate/deskmate-backend/internal/platform/apierr"
	"github.com/deskmate/deskmate-backend/internal/platform/logger"
)

const userAgent = "DeskMateBot/1.0 (+https://example.com)"

const maxFetchBytes = 2 << 20

// Limits bounds a single crawl.
type Limits struct {
	MaxDepth      int
	MaxPages      int
	MaxTotalChars int
	RateLimit     time.Duration
}

// Page is one fetched document.
type Page struct {
	URL     string
	Title   string
	Content string
}

// Result reports what the crawl kept and what it skipped.
type Result struct {
	Pages        []Page
	SkippedURLs  []string
	PagesVisited int
}

type Crawler struct {
	log        *logger.Logger
	httpClient *http.Client
}

func New(log *logger.Logger) *Crawler {
	return &Crawler{
		log:        log.With("service", "Crawler"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type queued struct {
	url   string
	depth int
}

// Crawl walks same-origin links from root, breadth-first. Pages are
// deduplicated by normalized URL and by content hash; off-origin and
// non-HTML responses are skipped. A root URL that is not absolute
// http/https is BadInput.
func (c *Crawler) Crawl(ctx context.Context, root string, limits Limits) (Result, error) {
	parsedRoot, err := url.Parse(strings.TrimSpace(root))
	if err != nil {
		return Result{}, apierr.BadInput("invalid_url", err)
	}
	if parsedRoot.Scheme != "http" && parsedRoot.Scheme != "https" {
		return Result{}, apierr.BadInput("invalid_url_scheme",
			fmt.Errorf("scheme %q not supported", parsedRoot.Scheme))
	}
	if parsedRoot.Host == "" {
		return Result{}, apierr.BadInput("invalid_url_host", fmt.Errorf("url must include a hostname"))
	}

	if limits.MaxPages < 1 {
		limits.MaxPages = 1
	}
	if limits.MaxTotalChars < 1 {
		limits.MaxTotalChars = 20000
	}

	robots := c.loadRobots(ctx, parsedRoot)

	queue := []queued{{url: normalizeURL(parsedRoot), depth: 0}}
	seenURLs := make(map[string]struct{})
	seenHashes := make(map[string]struct{})
	totalChars := 0
	var lastFetch time.Time
	var result Result

	for len(queue) > 0 && len(result.Pages) < limits.MaxPages {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		item := queue[0]
		queue = queue[1:]
		if _, ok := seenURLs[item.url]; ok {
			continue
		}
		seenURLs[item.url] = struct{}{}

		if item.depth > limits.MaxDepth {
			result.SkippedURLs = append(result.SkippedURLs, item.url)
			continue
		}
		if !robots.Allowed(item.url) {
			result.SkippedURLs = append(result.SkippedURLs, item.url)
			continue
		}

		lastFetch = c.respectRateLimit(lastFetch, limits.RateLimit)
		body, finalURL, ok := c.fetchHTML(ctx, item.url)
		if !ok {
			result.SkippedURLs = append(result.SkippedURLs, item.url)
			continue
		}

		pageURL, err := url.Parse(finalURL)
		if err != nil || pageURL.Scheme != parsedRoot.Scheme || pageURL.Host != parsedRoot.Host {
			result.SkippedURLs = append(result.SkippedURLs, finalURL)
			continue
		}
		normalized := normalizeURL(pageURL)

		doc, err := parseHTML(body)
		if err != nil {
			result.SkippedURLs = append(result.SkippedURLs, normalized)
			continue
		}

		text := doc.Text()
		if text == "" {
			continue
		}
		digest := sha1.Sum([]byte(text))
		hash := hex.EncodeToString(digest[:])
		if _, ok := seenHashes[hash]; ok {
			continue
		}
		seenHashes[hash] = struct{}{}

		if totalChars+len(text) > limits.MaxTotalChars {
			break
		}

		title := doc.Title()
		if title == "" {
			title = normalized
		}
		result.Pages = append(result.Pages, Page{URL: normalized, Title: title, Content: text})
		totalChars += len(text)
		result.PagesVisited++
		seenURLs[normalized] = struct{}{}

		if item.depth < limits.MaxDepth && len(result.Pages) < limits.MaxPages {
			for _, link := range doc.SameOriginLinks(pageURL) {
				if _, ok := seenURLs[link]; !ok {
					queue = append(queue, queued{url: link, depth: item.depth + 1})
				}
			}
		}
	}

	return result, nil
}

func (c *Crawler) respectRateLimit(lastFetch time.Time, rate time.Duration) time.Time {
	if rate <= 0 {
		return time.Now()
	}
	if wait := time.Until(lastFetch.Add(rate)); wait > 0 {
		time.Sleep(wait)
	}
	return time.Now()
}

// fetchHTML returns the response body when the fetch succeeded with an HTML
// content type; any failure is a skip, not an error.
func (c *Crawler) fetchHTML(ctx context.Context, target string) ([]byte, string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, target, false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, target, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, target, false
	}
	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		return nil, target, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, target, false
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return body, finalURL, true
}

func (c *Crawler) loadRobots(ctx context.Context, root *url.URL) *robotsRules {
	robotsURL := root.Scheme + "://" + root.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return allowAllRobots()
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return allowAllRobots()
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return allowAllRobots()
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return allowAllRobots()
	}
	return parseRobots(string(body))
}

// normalizeURL strips query and fragment and trims a trailing slash so the
// same page is queued once.
func normalizeURL(u *url.URL) string {
	path := u.Path
	if path == "" {
		path = "/"
	}
	normalized := u.Scheme + "://" + u.Host + path
	if trimmed := strings.TrimRight(normalized, "/"); trimmed != "" {
		return trimmed
	}
	return normalized
}
