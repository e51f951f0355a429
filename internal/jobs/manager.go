package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hieudev/pricewatch/internal/database"
	"github.com/hieudev/pricewatch/internal/events"
	"github.com/hieudev/pricewatch/internal/ratelimit"
	"github.com/hieudev/pricewatch/internal/scraper"
)

type Manager struct {
	db        *database.DB
	scraper   *scraper.Service
	publisher *events.Publisher
	limiter   ratelimit.Limiter
	logger    *slog.Logger
	interval  time.Duration
}

func NewManager(db *database.DB, scraper *scraper.Service, publisher *events.Publisher, limiter ratelimit.Limiter, interval time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		db:        db,
		scraper:   scraper,
		publisher: publisher,
		limiter:   limiter,
		interval:  interval,
		logger:    logger.With("component", "job_manager"),
	}
}

// Job represents a price check job. An empty InstanceID means the job
// checks every registered product.
type Job struct {
	ID              string     `json:"id"`
	InstanceID      string     `json:"instanceId,omitempty"`
	Status          string     `json:"status"`
	ProductsChecked int        `json:"productsChecked"`
	ProductsFailed  int        `json:"productsFailed"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Stats represents job queue statistics
type Stats struct {
	TotalJobs     int     `json:"totalJobs"`
	PendingJobs   int     `json:"pendingJobs"`
	RunningJobs   int     `json:"runningJobs"`
	CompletedJobs int     `json:"completedJobs"`
	FailedJobs    int     `json:"failedJobs"`
	SuccessRate   float64 `json:"successRate"`
}

// CreateJob enqueues a new price check job
func (m *Manager) CreateJob(ctx context.Context, instanceID string) (*Job, error) {
	if instanceID != "" {
		if _, err := m.db.GetProduct(ctx, instanceID); err != nil {
			return nil, err
		}
	}

	job := &Job{
		ID:         uuid.New().String(),
		InstanceID: instanceID,
		Status:     "pending",
		CreatedAt:  time.Now(),
	}

	query := `
		INSERT INTO check_jobs (id, instance_id, status, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := m.db.Exec(ctx, query, job.ID, nullable(job.InstanceID), job.Status, job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "instance_id", instanceID)
	return job, nil
}

// GetJob retrieves a job by ID
func (m *Manager) GetJob(ctx context.Context, jobID string) (*Job, error) {
	query := `
		SELECT id, instance_id, status, products_checked, products_failed,
		       created_at, started_at, completed_at, error
		FROM check_jobs
		WHERE id = $1
	`

	job := &Job{}
	var instanceID, jobErr sql.NullString
	err := m.db.QueryRow(ctx, query, jobID).Scan(
		&job.ID, &instanceID, &job.Status,
		&job.ProductsChecked, &job.ProductsFailed,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &jobErr,
	)
	if err == pgx.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	job.InstanceID = instanceID.String
	job.Error = jobErr.String

	return job, nil
}

// ListJobs lists recent jobs, newest first
func (m *Manager) ListJobs(ctx context.Context) ([]*Job, error) {
	query := `
		SELECT id, instance_id, status, products_checked, products_failed,
		       created_at, started_at, completed_at, error
		FROM check_jobs
		ORDER BY created_at DESC
		LIMIT 100
	`

	rows, err := m.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		job := &Job{}
		var instanceID, jobErr sql.NullString
		err := rows.Scan(
			&job.ID, &instanceID, &job.Status,
			&job.ProductsChecked, &job.ProductsFailed,
			&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &jobErr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job.InstanceID = instanceID.String
		job.Error = jobErr.String
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// GetStats retrieves job queue statistics
func (m *Manager) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	query := `
		SELECT
			COUNT(*) as total_jobs,
			COUNT(CASE WHEN status = 'pending' THEN 1 END) as pending_jobs,
			COUNT(CASE WHEN status = 'running' THEN 1 END) as running_jobs,
			COUNT(CASE WHEN status = 'completed' THEN 1 END) as completed_jobs,
			COUNT(CASE WHEN status = 'failed' THEN 1 END) as failed_jobs
		FROM check_jobs
	`

	err := m.db.QueryRow(ctx, query).Scan(
		&stats.TotalJobs, &stats.PendingJobs, &stats.RunningJobs,
		&stats.CompletedJobs, &stats.FailedJobs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	if stats.TotalJobs > 0 {
		stats.SuccessRate = float64(stats.CompletedJobs) / float64(stats.TotalJobs) * 100
	}

	return stats, nil
}

// updateJobStatus updates the status of a job
func (m *Manager) updateJobStatus(ctx context.Context, jobID, status string, jobErr error) error {
	var query string
	var args []interface{}

	switch {
	case status == "running":
		query = `UPDATE check_jobs SET status = $1, started_at = $2 WHERE id = $3`
		args = []interface{}{status, time.Now(), jobID}
	case status == "failed" && jobErr != nil:
		query = `UPDATE check_jobs SET status = $1, completed_at = $2, error = $3 WHERE id = $4`
		args = []interface{}{status, time.Now(), jobErr.Error(), jobID}
	case status == "completed" || status == "failed":
		query = `UPDATE check_jobs SET status = $1, completed_at = $2 WHERE id = $3`
		args = []interface{}{status, time.Now(), jobID}
	default:
		query = `UPDATE check_jobs SET status = $1 WHERE id = $2`
		args = []interface{}{status, jobID}
	}

	_, execErr := m.db.Exec(ctx, query, args...)
	return execErr
}

// updateJobProgress updates the per-product counters of a running job
func (m *Manager) updateJobProgress(ctx context.Context, jobID string, checked, failed int) error {
	query := `
		UPDATE check_jobs
		SET products_checked = $1, products_failed = $2
		WHERE id = $3
	`
	_, err := m.db.Exec(ctx, query, checked, failed, jobID)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
