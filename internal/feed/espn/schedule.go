package espn

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var gameIDPattern = regexp.MustCompile(`gameId/(\d+)`)

// GameIDs scrapes the schedule page for one week and returns the game ids
// in page order, de-duplicated. When a headless browser is configured it
// is used as a fallback after a blocked plain fetch.
func (c *Client) GameIDs(ctx context.Context, season, week, seasonType int) ([]string, error) {
	url := fmt.Sprintf("%s/_/week/%d/year/%d/seasontype/%d", c.scheduleURL, week, season, seasonType)

	var html string
	body, err := c.get(ctx, url)
	if err == nil {
		html = string(body)
	} else if c.browser != nil {
		log.Printf("[espn] ⚠ Plain schedule fetch failed (%v), retrying with headless browser", err)
		html, err = c.browser.FetchPage(ctx, url)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching schedule for season %d week %d: %w", season, week, err)
	}

	ids, err := parseGameIDs(html)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule for season %d week %d: %w", season, week, err)
	}
	return ids, nil
}

// parseGameIDs pulls gameId links out of schedule page HTML. Matchup links
// live in the teams column; if the page layout drops that class every
// anchor is scanned instead.
func parseGameIDs(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]bool)
	collect := func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		m := gameIDPattern.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		ids = append(ids, m[1])
	}

	doc.Find("td.teams__col a[href]").Each(collect)
	if len(ids) == 0 {
		doc.Find("a[href]").Each(collect)
	}
	return ids, nil
}
