package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hieudev/pricewatch/internal/database"
	"github.com/hieudev/pricewatch/internal/jobs"
	"github.com/hieudev/pricewatch/internal/models"
	"github.com/hieudev/pricewatch/internal/scraper"
)

// ProductStore is the product persistence surface the handlers need.
// *database.DB implements it.
type ProductStore interface {
	InsertProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, instanceID string) error
	GetProduct(ctx context.Context, instanceID string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]*models.Product, error)
}

// HistoryStore is the price history surface the handlers need.
type HistoryStore interface {
	QueryPriceHistory(ctx context.Context, f database.HistoryFilter) ([]*models.PriceSample, error)
	QueryDailyPriceHistory(ctx context.Context, f database.HistoryFilter) ([]*models.PriceSample, error)
	DeleteHistoryOlderThan(ctx context.Context, days int) (int64, error)
}

// Recorder records a price sample together with its outbox event.
// *events.Publisher implements it.
type Recorder interface {
	RecordPriceChecked(ctx context.Context, sample *models.PriceSample) error
}

// Scraper extracts a price from a product page. *scraper.Service
// implements it.
type Scraper interface {
	ScrapePrice(ctx context.Context, url, scraperType string) (int64, error)
}

// JobStore is the check job surface the handlers need. *jobs.Manager
// implements it.
type JobStore interface {
	CreateJob(ctx context.Context, instanceID string) (*jobs.Job, error)
	GetJob(ctx context.Context, jobID string) (*jobs.Job, error)
	ListJobs(ctx context.Context) ([]*jobs.Job, error)
}

type Handlers struct {
	products ProductStore
	history  HistoryStore
	recorder Recorder
	scraper  Scraper
	jobs     JobStore
	logger   *slog.Logger
}

func NewHandlers(products ProductStore, history HistoryStore, recorder Recorder, scraper Scraper, jobs JobStore, logger *slog.Logger) *Handlers {
	return &Handlers{
		products: products,
		history:  history,
		recorder: recorder,
		scraper:  scraper,
		jobs:     jobs,
		logger:   logger,
	}
}

// ListProducts handles listing all tracked products
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	h.respondJSON(w, http.StatusOK, products)
}

// CreateProduct handles registering a new product to track
func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p models.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if missing := p.Validate(); len(missing) > 0 {
		h.respondError(w, http.StatusBadRequest,
			"missing required fields: "+strings.Join(missing, ", "))
		return
	}

	if err := h.products.InsertProduct(r.Context(), &p); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			h.respondError(w, http.StatusConflict, "product already exists")
			return
		}
		h.logger.Error("failed to create product", "error", err, "instance_id", p.InstanceID)
		h.respondError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	h.respondJSON(w, http.StatusCreated, &p)
}

// UpdateProduct handles a full-record product update
func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	var p models.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p.InstanceID = instanceID

	if missing := p.Validate(); len(missing) > 0 {
		h.respondError(w, http.StatusBadRequest,
			"missing required fields: "+strings.Join(missing, ", "))
		return
	}

	if err := h.products.UpdateProduct(r.Context(), &p); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to update product", "error", err, "instance_id", instanceID)
		h.respondError(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	h.respondJSON(w, http.StatusOK, &p)
}

// DeleteProduct handles deleting a product and its price history
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	if err := h.products.DeleteProduct(r.Context(), instanceID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to delete product", "error", err, "instance_id", instanceID)
		h.respondError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// ScrapeRequest represents a one-off price scrape request
type ScrapeRequest struct {
	URL         string `json:"url"`
	ScraperType string `json:"scraperType"`
}

// Scrape handles one-off price extraction for a URL
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" || req.ScraperType == "" {
		h.respondError(w, http.StatusBadRequest, "url and scraperType are required")
		return
	}

	price, err := h.scraper.ScrapePrice(r.Context(), req.URL, req.ScraperType)
	if err != nil {
		h.respondScrapeError(w, req.URL, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]int64{"price": price})
}

// respondScrapeError maps scraper failures onto HTTP statuses: upstream
// fetch problems are 502, a page without a price element is 404, and a
// price element with unusable text is 422.
func (h *Handlers) respondScrapeError(w http.ResponseWriter, url string, err error) {
	var fetchErr *scraper.FetchError
	var parseErr *scraper.ParseError

	switch {
	case errors.As(err, &fetchErr):
		h.logger.Error("fetch failed", "url", url, "error", err)
		h.respondError(w, http.StatusBadGateway, "failed to fetch URL")
	case errors.Is(err, scraper.ErrPriceNotFound):
		h.respondError(w, http.StatusNotFound, "price element not found")
	case errors.As(err, &parseErr):
		h.respondError(w, http.StatusUnprocessableEntity, "could not parse price")
	default:
		h.logger.Error("scrape failed", "url", url, "error", err)
		h.respondError(w, http.StatusInternalServerError, "scrape failed")
	}
}

// GetPriceHistory handles querying raw price history
func (h *Handlers) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	h.queryHistory(w, r, h.history.QueryPriceHistory)
}

// GetDailyPriceHistory handles querying the latest sample per day per
// product per website
func (h *Handlers) GetDailyPriceHistory(w http.ResponseWriter, r *http.Request) {
	h.queryHistory(w, r, h.history.QueryDailyPriceHistory)
}

func (h *Handlers) queryHistory(w http.ResponseWriter, r *http.Request, query func(context.Context, database.HistoryFilter) ([]*models.PriceSample, error)) {
	f := database.HistoryFilter{
		ProductID: r.URL.Query().Get("productId"),
		StartDate: r.URL.Query().Get("startDate"),
		EndDate:   r.URL.Query().Get("endDate"),
	}

	samples, err := query(r.Context(), f)
	if err != nil {
		h.logger.Error("failed to query price history", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to query price history")
		return
	}

	h.respondJSON(w, http.StatusOK, samples)
}

// RecordPriceRequest represents a manually submitted price sample
type RecordPriceRequest struct {
	InstanceID string `json:"instanceId"`
	Price      int64  `json:"price"`
}

// RecordPrice handles recording a price sample for a known product.
// The server stamps checked_date and checked_at.
func (h *Handlers) RecordPrice(w http.ResponseWriter, r *http.Request) {
	var req RecordPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.InstanceID == "" {
		h.respondError(w, http.StatusBadRequest, "instanceId is required")
		return
	}
	if req.Price < 0 {
		h.respondError(w, http.StatusBadRequest, "price must not be negative")
		return
	}

	product, err := h.products.GetProduct(r.Context(), req.InstanceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to get product", "error", err, "instance_id", req.InstanceID)
		h.respondError(w, http.StatusInternalServerError, "failed to get product")
		return
	}

	sample := &models.PriceSample{
		InstanceID: product.InstanceID,
		ProductID:  product.ProductID,
		Website:    product.Website,
		Price:      req.Price,
	}

	if err := h.recorder.RecordPriceChecked(r.Context(), sample); err != nil {
		h.logger.Error("failed to record price", "error", err, "instance_id", req.InstanceID)
		h.respondError(w, http.StatusInternalServerError, "failed to record price")
		return
	}

	h.respondJSON(w, http.StatusCreated, sample)
}

// PruneHistory handles deleting price history older than a cutoff
func (h *Handlers) PruneHistory(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("olderThanDays"))
	if err != nil || days <= 0 {
		h.respondError(w, http.StatusBadRequest, "olderThanDays must be a positive integer")
		return
	}

	deleted, err := h.history.DeleteHistoryOlderThan(r.Context(), days)
	if err != nil {
		h.logger.Error("failed to prune history", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to prune history")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// CreateJobRequest represents a new price check job request
type CreateJobRequest struct {
	InstanceID string `json:"instanceId"`
}

// CreateJob handles enqueueing a price check job. An empty instanceId
// checks every product.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), req.InstanceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusCreated, job)
}

// GetJob handles job status retrieval
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("failed to get job", "error", err, "id", jobID)
		h.respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// ListJobs handles listing recent jobs
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	h.respondJSON(w, http.StatusOK, jobs)
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
