package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"car-price-app/models"
	"car-price-app/utils"
)

// Selectors locate listing cards and their parts on a results page. Label,
// Price and Description are evaluated inside each card.
type Selectors struct {
	Card        string `json:"card"`
	Label       string `json:"label"`
	Price       string `json:"price"`
	Description string `json:"description"`
	Next        string `json:"next"`
}

// Options configures a scrape of reference listings.
type Options struct {
	URL         string
	Pages       int
	PerPage     int
	RateLimit   time.Duration
	PageTimeout time.Duration
	ChromeBin   string
	Selectors   Selectors
}

// Scraper renders listing pages in headless Chrome and collects raw
// reference listings from them.
type Scraper struct {
	opts   Options
	logger *utils.Logger
	retry  *utils.RetryConfig
	seen   map[string]bool
}

// New creates a ready-to-use Scraper.
func New(opts Options, logger *utils.Logger, retry *utils.RetryConfig) (*Scraper, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("scraper: no start URL")
	}
	if opts.Selectors.Card == "" || opts.Selectors.Label == "" || opts.Selectors.Price == "" {
		return nil, fmt.Errorf("scraper: card, label and price selectors are required")
	}
	if opts.Pages < 1 {
		opts.Pages = 1
	}
	if opts.PerPage < 1 {
		opts.PerPage = 20
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 90 * time.Second
	}
	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 1, Logger: logger}
	}
	return &Scraper{opts: opts, logger: logger, retry: retry, seen: make(map[string]bool)}, nil
}

type cardData struct {
	Label       string `json:"label"`
	Price       string `json:"price"`
	Description string `json:"description"`
}

type pageData struct {
	Cards []cardData `json:"cards"`
	Next  string     `json:"next"`
}

// ReadRaw drives pagination from the start URL and returns every distinct
// card found. Prices are left for the cleaner to parse.
func (s *Scraper) ReadRaw(ctx context.Context) ([]*models.RawListing, error) {
	s.logger.Info("[scraper] Starting scrape of %s: up to %d pages, %d listings/page",
		s.opts.URL, s.opts.Pages, s.opts.PerPage)

	chromeBin := s.opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		s.logger.Info("[scraper] Using browser binary: %s", chromeBin)
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	var listings []*models.RawListing
	currentURL := s.opts.URL
	for page := 1; page <= s.opts.Pages; page++ {
		s.logger.Info("[scraper] Page %d: %s", page, currentURL)

		data, err := s.scrapePage(browserCtx, currentURL, page)
		if err != nil {
			if len(listings) == 0 {
				return nil, err
			}
			s.logger.Error("[scraper] Page %d failed, keeping %d listings: %v", page, len(listings), err)
			break
		}

		fresh := s.collect(data.Cards)
		if len(data.Cards) == 0 {
			s.logger.Warn("[scraper] Page %d returned 0 cards, stopping", page)
			break
		}
		listings = append(listings, fresh...)
		s.logger.Info("[scraper] Page %d done: %d new, %d total", page, len(fresh), len(listings))

		if data.Next == "" || page == s.opts.Pages {
			break
		}
		currentURL = data.Next

		select {
		case <-ctx.Done():
			return listings, ctx.Err()
		case <-time.After(s.opts.RateLimit):
		}
	}

	s.logger.Info("[scraper] Scrape complete: %d raw listings", len(listings))
	return listings, nil
}

func (s *Scraper) scrapePage(browserCtx context.Context, pageURL string, pageNum int) (*pageData, error) {
	script, err := extractScript(s.opts.Selectors, s.opts.PerPage)
	if err != nil {
		return nil, err
	}

	var data pageData
	err = s.retry.Do(browserCtx, fmt.Sprintf("scrape-page-%d", pageNum), func() error {
		ctx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, s.opts.PageTimeout)
		defer cancelTimeout()

		data = pageData{}
		err := chromedp.Run(ctx,
			chromedp.Navigate(pageURL),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),
			chromedp.Evaluate(script, &data),
		)
		if err != nil {
			return fmt.Errorf("chromedp page scrape: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("[scraper] Page %d: found %d cards", pageNum, len(data.Cards))
	return &data, nil
}

// collect turns cards into raw listings, skipping cards already seen on an
// earlier page and cards without a label.
func (s *Scraper) collect(cards []cardData) []*models.RawListing {
	var out []*models.RawListing
	for _, c := range cards {
		label := strings.TrimSpace(c.Label)
		if label == "" {
			continue
		}
		key := label + "\x00" + strings.TrimSpace(c.Price) + "\x00" + strings.TrimSpace(c.Description)
		if s.seen[key] {
			s.logger.Debug("[scraper] Skipping duplicate: %s", label)
			continue
		}
		s.seen[key] = true
		out = append(out, &models.RawListing{
			Label:       label,
			RawPrice:    c.Price,
			Description: c.Description,
		})
	}
	return out
}

// extractScript builds the in-page extraction function. Selectors are
// embedded as JSON so they need no escaping.
func extractScript(sel Selectors, limit int) (string, error) {
	b, err := json.Marshal(sel)
	if err != nil {
		return "", fmt.Errorf("scraper: encode selectors: %w", err)
	}
	return fmt.Sprintf(`
		(function() {
			var sel = %s;
			var limit = %d;
			var text = function(root, q) {
				if (!q) return '';
				var el = root.querySelector(q);
				return el ? (el.innerText || el.textContent || '').trim() : '';
			};
			var cards = [];
			var nodes = document.querySelectorAll(sel.card);
			for (var i = 0; i < nodes.length && cards.length < limit; i++) {
				cards.push({
					label:       text(nodes[i], sel.label),
					price:       text(nodes[i], sel.price),
					description: text(nodes[i], sel.description)
				});
			}
			var next = '';
			if (sel.next) {
				var a = document.querySelector(sel.next);
				if (a && a.href) next = a.href;
			}
			return {cards: cards, next: next};
		})()
	`, b, limit), nil
}

func findChromeBinary() string {
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
