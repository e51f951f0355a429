package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	fetcher := NewFetcher(5*time.Second, "test-agent", slog.Default())
	return NewService(fetcher, slog.Default())
}

func TestScrapePrice(t *testing.T) {
	ctx := context.Background()

	t.Run("extracts and parses a woocommerce price", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><body>
				<span class="woocommerce-Price-amount amount">1.234.567&nbsp;đ</span>
			</body></html>`))
		}))
		defer srv.Close()

		price, err := newTestService().ScrapePrice(ctx, srv.URL, "woocommerce")
		require.NoError(t, err)
		assert.Equal(t, int64(1234567), price)
	})

	t.Run("sends browser user agent", func(t *testing.T) {
		var gotAgent string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAgent = r.Header.Get("User-Agent")
			w.Write([]byte(`<meta property="og:price:amount" content="99000">`))
		}))
		defer srv.Close()

		_, err := newTestService().ScrapePrice(ctx, srv.URL, "generic")
		require.NoError(t, err)
		assert.Equal(t, "test-agent", gotAgent)
	})

	t.Run("HTTP 500 is a fetch error, not a missing element", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newTestService().ScrapePrice(ctx, srv.URL, "woocommerce")
		require.Error(t, err)

		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
		assert.NotErrorIs(t, err, ErrPriceNotFound)
	})

	t.Run("unreachable host is a fetch error", func(t *testing.T) {
		_, err := newTestService().ScrapePrice(ctx, "http://127.0.0.1:1", "generic")
		require.Error(t, err)

		var fetchErr *FetchError
		assert.ErrorAs(t, err, &fetchErr)
	})

	t.Run("page without a price element", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><body><p>out of stock</p></body></html>`))
		}))
		defer srv.Close()

		_, err := newTestService().ScrapePrice(ctx, srv.URL, "cellphones")
		assert.ErrorIs(t, err, ErrPriceNotFound)
	})

	t.Run("matched text without digits", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<div class="sale-price">Liên hệ</div>`))
		}))
		defer srv.Close()

		_, err := newTestService().ScrapePrice(ctx, srv.URL, "cellphones")
		require.Error(t, err)

		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "Liên hệ", parseErr.RawText)
	})

	t.Run("cancelled context abandons the fetch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(2 * time.Second)
		}))
		defer srv.Close()

		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := newTestService().ScrapePrice(cancelCtx, srv.URL, "generic")
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
