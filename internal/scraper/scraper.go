package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrPriceNotFound means the page was fetched successfully but no
	// extraction rule produced any text.
	ErrPriceNotFound = errors.New("price element not found on page")
)

// ParseError reports extracted text that could not be turned into a
// price. It carries the raw text so callers can log or display it.
type ParseError struct {
	RawText string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse price from %q", e.RawText)
}

// Service is the scrape orchestrator: fetch, extract, parse. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

func NewService(fetcher *Fetcher, logger *slog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		logger:  logger.With("component", "scraper"),
	}
}

// ExtractPriceText fetches url and applies the rule set for scraperType.
// A *FetchError means the page never arrived; ErrPriceNotFound means it
// did but carried no recognizable price element.
func (s *Service) ExtractPriceText(ctx context.Context, url, scraperType string) (string, error) {
	doc, err := s.fetcher.FetchDocument(ctx, url)
	if err != nil {
		return "", err
	}

	text := ExtractPriceText(doc, scraperType)
	if text == "" {
		return "", ErrPriceNotFound
	}

	return text, nil
}

// ScrapePrice performs one best-effort scrape of a product page. There
// are no retries; failures surface as typed errors and the caller
// decides whether to retry or fall back.
func (s *Service) ScrapePrice(ctx context.Context, url, scraperType string) (int64, error) {
	s.logger.Info("scraping page", "url", url, "scraper_type", scraperType)

	text, err := s.ExtractPriceText(ctx, url, scraperType)
	if err != nil {
		return 0, err
	}

	price, ok := ParsePrice(text)
	if !ok {
		s.logger.Warn("unparseable price text", "url", url, "raw_text", text)
		return 0, &ParseError{RawText: text}
	}

	s.logger.Info("found price", "url", url, "price", price)
	return price, nil
}
