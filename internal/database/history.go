package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hieudev/pricewatch/internal/models"
)

// HistoryFilter narrows a price-history query. Zero values mean "no
// constraint". Dates are YYYY-MM-DD and compared inclusively against the
// sample's calendar date.
type HistoryFilter struct {
	ProductID string
	StartDate string
	EndDate   string
}

const historySelect = `
	SELECT h.id, h.instance_id, h.product_id, h.website, h.price,
	       h.checked_date, h.checked_at, COALESCE(p.name, '')
	FROM price_history h
	LEFT JOIN products p ON p.instance_id = h.instance_id`

// dailyLatestCond keeps, per (calendar date, product, website) group,
// only the row with the highest id — the last sample recorded that day.
// Ids are monotonic, so max id equals most recently inserted.
const dailyLatestCond = `h.id = (
	SELECT MAX(h2.id)
	FROM price_history h2
	WHERE h2.checked_date = h.checked_date
	  AND h2.product_id = h.product_id
	  AND h2.website = h.website
)`

// QueryPriceHistory returns every matching sample, newest first.
func (db *DB) QueryPriceHistory(ctx context.Context, f HistoryFilter) ([]*models.PriceSample, error) {
	query, args := buildHistoryQuery(f, false)
	return db.queryHistory(ctx, query, args)
}

// QueryDailyPriceHistory returns one sample per (calendar date, product,
// website) group — the last one recorded that day — newest first.
func (db *DB) QueryDailyPriceHistory(ctx context.Context, f HistoryFilter) ([]*models.PriceSample, error) {
	query, args := buildHistoryQuery(f, true)
	return db.queryHistory(ctx, query, args)
}

func buildHistoryQuery(f HistoryFilter, dailyLatest bool) (string, []interface{}) {
	query := historySelect
	var conds []string
	var args []interface{}

	if f.ProductID != "" {
		args = append(args, f.ProductID)
		conds = append(conds, fmt.Sprintf("h.product_id = $%d", len(args)))
	}
	if f.StartDate != "" {
		args = append(args, f.StartDate)
		conds = append(conds, fmt.Sprintf("h.checked_date >= $%d", len(args)))
	}
	if f.EndDate != "" {
		args = append(args, f.EndDate)
		conds = append(conds, fmt.Sprintf("h.checked_date <= $%d", len(args)))
	}
	if dailyLatest {
		conds = append(conds, dailyLatestCond)
	}

	for i, cond := range conds {
		if i == 0 {
			query += "\n\tWHERE " + cond
		} else {
			query += "\n\t  AND " + cond
		}
	}

	query += "\n\tORDER BY h.checked_at DESC"
	return query, args
}

func (db *DB) queryHistory(ctx context.Context, query string, args []interface{}) ([]*models.PriceSample, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var samples []*models.PriceSample
	for rows.Next() {
		s := &models.PriceSample{}
		var checkedDate time.Time
		err := rows.Scan(
			&s.ID, &s.InstanceID, &s.ProductID, &s.Website, &s.Price,
			&checkedDate, &s.CheckedAt, &s.ProductName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		s.CheckedDate = checkedDate.Format("2006-01-02")
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return samples, nil
}

// InsertPriceSampleTx records one sample inside an existing transaction.
// The server assigns checked_date and checked_at; samples never change
// after this.
func (db *DB) InsertPriceSampleTx(ctx context.Context, tx pgx.Tx, s *models.PriceSample) error {
	query := `
		INSERT INTO price_history (instance_id, product_id, website, price, checked_date, checked_at)
		VALUES ($1, $2, $3, $4, CURRENT_DATE, now())
		RETURNING id, checked_date, checked_at`

	var checkedDate time.Time
	err := tx.QueryRow(ctx, query,
		s.InstanceID, s.ProductID, s.Website, s.Price,
	).Scan(&s.ID, &checkedDate, &s.CheckedAt)

	if err != nil {
		return fmt.Errorf("failed to insert price sample: %w", err)
	}

	s.CheckedDate = checkedDate.Format("2006-01-02")
	return nil
}

// DeleteHistoryOlderThan bulk-deletes samples whose calendar date is more
// than days days old, returning how many went.
func (db *DB) DeleteHistoryOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("olderThanDays must be positive")
	}

	query := `DELETE FROM price_history WHERE checked_date < CURRENT_DATE - $1::int`

	result, err := db.pool.Exec(ctx, query, days)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old history: %w", err)
	}

	return result.RowsAffected(), nil
}
