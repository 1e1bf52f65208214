package espn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// MinFetchInterval spaces out headless fetches to avoid rate limiting.
const MinFetchInterval = 2 * time.Second

// Browser renders pages through headless Chrome for the occasions when
// ESPN blocks the plain HTTP client.
type Browser struct {
	allocCtx context.Context
	cancel   context.CancelFunc

	mu        sync.Mutex
	lastFetch time.Time
	interval  time.Duration
}

// NewBrowser allocates a headless Chrome instance.
func NewBrowser() *Browser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(UserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Browser{
		allocCtx: allocCtx,
		cancel:   cancel,
		interval: MinFetchInterval,
	}
}

// Close releases the browser instance.
func (b *Browser) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// FetchPage navigates to url and returns the rendered document HTML.
func (b *Browser) FetchPage(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.throttle()

	browserCtx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()
	browserCtx, cancel = context.WithTimeout(browserCtx, 30*time.Second)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`body`, chromedp.ByQuery),
		chromedp.Sleep(1*time.Second), // allow JS to render
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("headless fetch of %s: %w", url, err)
	}
	if html == "" {
		return "", fmt.Errorf("headless fetch of %s returned no content", url)
	}
	return html, nil
}

func (b *Browser) throttle() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.lastFetch.IsZero() {
		if wait := b.interval - time.Since(b.lastFetch); wait > 0 {
			time.Sleep(wait)
		}
	}
	b.lastFetch = time.Now()
}
