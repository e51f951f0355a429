package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// FetchError reports a failed page retrieval: DNS, timeout, TLS, a
// non-2xx status or an unreadable body. It is distinct from
// ErrPriceNotFound, which means the page was fetched fine but no rule
// matched.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves product pages with a fixed desktop-browser identity.
// Sites commonly reject Go's default User-Agent outright.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

func NewFetcher(timeout time.Duration, userAgent string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger.With("component", "fetcher"),
	}
}

// FetchDocument performs a single GET and parses the body as markup.
// Cancelling ctx abandons the request.
func (f *Fetcher) FetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Warn("unexpected status", "url", url, "status", resp.StatusCode)
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", resp.Status)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}

	return doc, nil
}
