package espn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/calloway/gridfax/internal/metrics"
	"github.com/calloway/gridfax/internal/stats"
)

const (
	// SummaryURL is the ESPN site API endpoint serving game summaries
	// with full box scores.
	SummaryURL = "https://site.web.api.espn.com/apis/site/v2/sports/football/nfl/summary"

	// ScheduleURL is the public NFL schedule page.
	ScheduleURL = "https://www.espn.com/nfl/schedule"

	// UserAgent mirrors a desktop Chrome build. ESPN rejects the default
	// Go client fingerprint.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"
)

// Client fetches NFL schedule pages and game summaries from ESPN.
type Client struct {
	httpClient  *http.Client
	summaryURL  string
	scheduleURL string

	// browser, when set, retries schedule page fetches through headless
	// Chrome after a plain HTTP fetch is blocked.
	browser *Browser
}

// New creates a client with custom endpoints. Empty strings select the
// production ESPN URLs.
func New(summaryURL, scheduleURL string) *Client {
	if summaryURL == "" {
		summaryURL = SummaryURL
	}
	if scheduleURL == "" {
		scheduleURL = ScheduleURL
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		summaryURL:  summaryURL,
		scheduleURL: scheduleURL,
	}
}

// NewClient creates a client against the production ESPN endpoints.
func NewClient() *Client {
	return New("", "")
}

// SetBrowser enables the headless-browser fallback for schedule fetches.
func (c *Client) SetBrowser(b *Browser) {
	c.browser = b
}

// GameSummary fetches the summary JSON for one game.
func (c *Client) GameSummary(ctx context.Context, gameID string) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s?region=us&lang=en&contentorigin=espn&event=%s", c.summaryURL, gameID)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return nil, fmt.Errorf("ESPN returned an HTML page instead of JSON: %s", snippet(trimmed))
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding game summary: %w (body: %s)", err, snippet(body))
	}
	return payload, nil
}

// GameRecords fetches a game summary and extracts its stat lines grouped
// by category.
func (c *Client) GameRecords(ctx context.Context, gameID string) (map[stats.Category][]stats.GameRecord, error) {
	payload, err := c.GameSummary(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return Extract(payload), nil
}

// get performs a GET with browser-like headers and returns the body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	metrics.RecordFeedRequest()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordFeedFailure()
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordFeedFailure()
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordFeedFailure()
		log.Printf("[espn] ⚠ %s returned status %d", url, resp.StatusCode)
		return nil, fmt.Errorf("ESPN returned status %d for %s", resp.StatusCode, url)
	}
	return body, nil
}

func snippet(b []byte) string {
	if len(b) > 120 {
		b = b[:120]
	}
	return string(b)
}
