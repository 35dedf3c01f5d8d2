package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// UserAgent for requests
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultTimeout bounds a single fetch or render.
	DefaultTimeout = 30 * time.Second

	cachePrefix = "page:"
)

// ErrStatus is returned for non-2xx responses.
var ErrStatus = errors.New("unexpected status")

// PageCache stores fetched pages. Any Get error is treated as a miss.
type PageCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Fetcher is what scrapers need from a Client.
type Fetcher interface {
	Get(ctx context.Context, url string) (string, error)
	Document(ctx context.Context, url string) (*goquery.Document, error)
}

// Options configures a Client.
type Options struct {
	RatePerSec float64
	Burst      int
	Headless   bool
	Cache      PageCache
	CacheTTL   time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client fetches stats and sportsbook pages with a shared rate limit.
type Client struct {
	http     *http.Client
	limiter  *rate.Limiter
	cache    PageCache
	cacheTTL time.Duration
	logger   *zap.Logger

	headless bool
	mu       sync.Mutex
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewClient creates a fetch client. The headless browser is started lazily
// on the first Render call.
func NewClient(opts Options) *Client {
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 0.3
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		http:     opts.HTTPClient,
		limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   opts.Logger.Named("fetch"),
		headless: opts.Headless,
	}
}

// Close releases the browser allocator, if one was started.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Get fetches a page over HTTP, consulting the page cache first.
func (c *Client) Get(ctx context.Context, url string) (string, error) {
	if body, ok := c.cached(ctx, url); ok {
		return body, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w %d from %s", ErrStatus, resp.StatusCode, url)
	}

	c.logger.Debug("fetched page",
		zap.String("url", url),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)),
	)

	body := string(data)
	c.store(ctx, url, body)
	return body, nil
}

// Render loads a page in headless Chrome and returns the rendered HTML.
// Used for sportsbook pages that build their state in JavaScript.
func (c *Client) Render(ctx context.Context, url string) (string, error) {
	if body, ok := c.cached(ctx, url); ok {
		return body, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	c.mu.Lock()
	if c.allocCtx == nil {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", c.headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(UserAgent),
		)
		c.allocCtx, c.cancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	allocCtx := c.allocCtx
	c.mu.Unlock()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, DefaultTimeout)
	defer cancel()

	// stop the browser tab when the caller gives up
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`body`, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp error: %w", err)
	}
	if html == "" {
		return "", fmt.Errorf("empty HTML content returned from %s", url)
	}

	c.store(ctx, url, html)
	return html, nil
}

// Document fetches a page and parses it with goquery.
func (c *Client) Document(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseHTML(body)
}

func (c *Client) cached(ctx context.Context, url string) (string, bool) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return "", false
	}
	body, err := c.cache.Get(ctx, CacheKey(url))
	if err != nil || body == "" {
		return "", false
	}
	return body, true
}

func (c *Client) store(ctx context.Context, url, body string) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}
	if err := c.cache.Set(ctx, CacheKey(url), body, c.cacheTTL); err != nil {
		c.logger.Warn("page cache write failed", zap.String("url", url), zap.Error(err))
	}
}

// CacheKey is the page cache key for a URL.
func CacheKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return cachePrefix + hex.EncodeToString(sum[:])
}

// ParseHTML converts raw HTML to a goquery Document for parsing
func ParseHTML(htmlContent string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Uncomment returns the contents of HTML comments. Sports-reference sites
// ship secondary tables inside comments.
func Uncomment(html string) string {
	var b strings.Builder
	for {
		start := strings.Index(html, "<!--")
		if start < 0 {
			break
		}
		end := strings.Index(html[start+4:], "-->")
		if end < 0 {
			break
		}
		b.WriteString(html[start+4 : start+4+end])
		b.WriteByte('\n')
		html = html[start+4+end+3:]
	}
	return b.String()
}
