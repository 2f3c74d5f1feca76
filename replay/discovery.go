package replay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

var gameLinkRe = regexp.MustCompile(`/game/([a-f0-9-]+)`)

// FindGameIDs lists the game IDs linked from an HTML page, such as a
// leaderboard stats page, in page order without duplicates.
func FindGameIDs(ctx context.Context, client *http.Client, pageURL string) ([]string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if _, err := url.Parse(pageURL); err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "snekspace-replay/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	var ids []string
	seen := make(map[string]bool)
	doc.Find("a[href*='/game/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		m := gameLinkRe.FindStringSubmatch(href)
		if len(m) < 2 || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		ids = append(ids, m[1])
	})
	return ids, nil
}
