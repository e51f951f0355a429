package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hieudev/pricewatch/internal/models"
)

// StartWorker starts the background job worker. It polls for pending jobs
// and runs them one at a time until the context is cancelled.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started", "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("job worker stopping")
			return
		case <-ticker.C:
			m.processNextJob(ctx)
		}
	}
}

// processNextJob claims and runs the oldest pending job. The claim uses
// FOR UPDATE SKIP LOCKED so multiple workers never pick the same job.
func (m *Manager) processNextJob(ctx context.Context) {
	var jobID, instanceID string

	err := m.db.Transaction(ctx, func(tx pgx.Tx) error {
		claim := `
			SELECT id, COALESCE(instance_id, '')
			FROM check_jobs
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`
		if err := tx.QueryRow(ctx, claim).Scan(&jobID, &instanceID); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`UPDATE check_jobs SET status = 'running', started_at = $1 WHERE id = $2`,
			time.Now(), jobID)
		return err
	})
	if err != nil {
		// No pending jobs
		return
	}

	m.logger.Info("processing job", "id", jobID, "instance_id", instanceID)

	if err := m.runJob(ctx, jobID, instanceID); err != nil {
		m.logger.Error("job failed", "id", jobID, "error", err)
		m.updateJobStatus(ctx, jobID, "failed", err)
		return
	}

	if err := m.updateJobStatus(ctx, jobID, "completed", nil); err != nil {
		m.logger.Error("failed to mark job as completed", "error", err)
	}

	m.logger.Info("job completed", "id", jobID)
}

// runJob checks the price of every product the job targets. A product
// whose scrape fails counts against products_failed; no history row is
// written for it.
func (m *Manager) runJob(ctx context.Context, jobID, instanceID string) error {
	products, err := m.targetProducts(ctx, instanceID)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return fmt.Errorf("no products to check")
	}

	checked, failed := 0, 0
	for _, p := range products {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}

		price, err := m.scraper.ScrapePrice(ctx, p.URL, p.ScraperType)
		if err != nil {
			m.logger.Warn("price check failed",
				"job", jobID,
				"instance_id", p.InstanceID,
				"error", err)
			failed++
		} else {
			sample := &models.PriceSample{
				InstanceID: p.InstanceID,
				ProductID:  p.ProductID,
				Website:    p.Website,
				Price:      price,
			}
			if err := m.publisher.RecordPriceChecked(ctx, sample); err != nil {
				m.logger.Error("failed to record sample",
					"job", jobID,
					"instance_id", p.InstanceID,
					"error", err)
				failed++
			} else {
				checked++
			}
		}

		if err := m.updateJobProgress(ctx, jobID, checked, failed); err != nil {
			m.logger.Error("failed to update progress", "error", err)
		}
	}

	m.logger.Info("job processing complete",
		"job", jobID, "checked", checked, "failed", failed)

	if checked == 0 && failed > 0 {
		return fmt.Errorf("all %d price checks failed", failed)
	}
	return nil
}

func (m *Manager) targetProducts(ctx context.Context, instanceID string) ([]*models.Product, error) {
	if instanceID == "" {
		return m.db.ListProducts(ctx)
	}
	p, err := m.db.GetProduct(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return []*models.Product{p}, nil
}
