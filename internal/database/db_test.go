package database

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hieudev/pricewatch/internal/models"
)

// setupTestDB connects to the database named by TEST_DATABASE_URL and
// resets the schema. Tests that need Postgres skip when it is unset.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := NewFromDSN(ctx, dsn, Config{})
	require.NoError(t, err)

	_, err = db.Exec(ctx, `DROP TABLE IF EXISTS price_history, products, users, outbox_event, check_jobs CASCADE`)
	require.NoError(t, err)
	require.NoError(t, db.InitSchema(ctx))

	return db
}

func insertTestProduct(t *testing.T, db *DB, instanceID, productID, website string) {
	t.Helper()
	err := db.InsertProduct(context.Background(), &models.Product{
		InstanceID:  instanceID,
		ProductID:   productID,
		Name:        "Test " + instanceID,
		URL:         "https://example.com/" + instanceID,
		Website:     website,
		ScraperType: "woocommerce",
	})
	require.NoError(t, err)
}

func insertTestSample(t *testing.T, db *DB, instanceID, productID, website, date string, price int64) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO price_history (instance_id, product_id, website, price, checked_date, checked_at)
		VALUES ($1, $2, $3, $4, $5::date, $5::date + interval '12 hours')
		RETURNING id`,
		instanceID, productID, website, price, date,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestProductCRUD(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	t.Run("insert and get", func(t *testing.T) {
		insertTestProduct(t, db, "p1", "sku1", "X")

		p, err := db.GetProduct(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "sku1", p.ProductID)
		assert.Equal(t, "X", p.Website)
	})

	t.Run("duplicate instance id", func(t *testing.T) {
		err := db.InsertProduct(ctx, &models.Product{
			InstanceID: "p1", ProductID: "sku1", Name: "n",
			URL: "u", Website: "X", ScraperType: "generic",
		})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("same productId on another site is fine", func(t *testing.T) {
		insertTestProduct(t, db, "p1-siteB", "sku1", "Y")
	})

	t.Run("update unknown product", func(t *testing.T) {
		err := db.UpdateProduct(ctx, &models.Product{
			InstanceID: "ghost", ProductID: "s", Name: "n",
			URL: "u", Website: "w", ScraperType: "generic",
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete cascades to history", func(t *testing.T) {
		insertTestSample(t, db, "p1", "sku1", "X", "2024-01-10", 100)
		insertTestSample(t, db, "p1", "sku1", "X", "2024-01-11", 110)

		require.NoError(t, db.DeleteProduct(ctx, "p1"))

		var remaining int
		err := db.QueryRow(ctx,
			`SELECT COUNT(*) FROM price_history WHERE instance_id = 'p1'`).Scan(&remaining)
		require.NoError(t, err)
		assert.Zero(t, remaining)

		assert.ErrorIs(t, db.DeleteProduct(ctx, "p1"), ErrNotFound)
	})
}

func TestQueryPriceHistory(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	insertTestProduct(t, db, "p1", "sku1", "X")
	insertTestProduct(t, db, "p2", "sku2", "X")

	t.Run("date range is inclusive", func(t *testing.T) {
		insertTestSample(t, db, "p1", "sku1", "X", "2024-01-01", 100)
		insertTestSample(t, db, "p1", "sku1", "X", "2024-01-31", 130)
		insertTestSample(t, db, "p1", "sku1", "X", "2024-02-01", 140)

		samples, err := db.QueryPriceHistory(ctx, HistoryFilter{
			StartDate: "2024-01-01",
			EndDate:   "2024-01-31",
		})
		require.NoError(t, err)
		require.Len(t, samples, 2)
		for _, s := range samples {
			assert.NotEqual(t, "2024-02-01", s.CheckedDate)
		}
	})

	t.Run("productId filter", func(t *testing.T) {
		insertTestSample(t, db, "p2", "sku2", "X", "2024-01-15", 999)

		samples, err := db.QueryPriceHistory(ctx, HistoryFilter{ProductID: "sku2"})
		require.NoError(t, err)
		require.Len(t, samples, 1)
		assert.Equal(t, int64(999), samples[0].Price)
		assert.Equal(t, "Test p2", samples[0].ProductName)
	})

	t.Run("ordered newest first", func(t *testing.T) {
		samples, err := db.QueryPriceHistory(ctx, HistoryFilter{ProductID: "sku1"})
		require.NoError(t, err)
		require.Len(t, samples, 3)
		for i := 1; i < len(samples); i++ {
			assert.False(t, samples[i].CheckedAt.After(samples[i-1].CheckedAt))
		}
	})
}

func TestQueryDailyPriceHistory(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	insertTestProduct(t, db, "p1", "sku1", "X")
	insertTestProduct(t, db, "p1-siteB", "sku1", "Y")

	t.Run("keeps only the max id per day per product per site", func(t *testing.T) {
		insertTestSample(t, db, "p1", "sku1", "X", "2024-01-10", 100)
		insertTestSample(t, db, "p1", "sku1", "X", "2024-01-10", 105)
		lastID := insertTestSample(t, db, "p1", "sku1", "X", "2024-01-10", 95)

		samples, err := db.QueryDailyPriceHistory(ctx, HistoryFilter{ProductID: "sku1"})
		require.NoError(t, err)
		require.Len(t, samples, 1)
		assert.Equal(t, lastID, samples[0].ID)
		assert.Equal(t, int64(95), samples[0].Price)
	})

	t.Run("same day on another site is its own group", func(t *testing.T) {
		insertTestSample(t, db, "p1-siteB", "sku1", "Y", "2024-01-10", 90)

		samples, err := db.QueryDailyPriceHistory(ctx, HistoryFilter{ProductID: "sku1"})
		require.NoError(t, err)
		assert.Len(t, samples, 2)
	})

	t.Run("separate days are separate groups", func(t *testing.T) {
		insertTestSample(t, db, "p1", "sku1", "X", "2024-01-11", 101)

		samples, err := db.QueryDailyPriceHistory(ctx, HistoryFilter{
			ProductID: "sku1",
			StartDate: "2024-01-10",
			EndDate:   "2024-01-11",
		})
		require.NoError(t, err)
		assert.Len(t, samples, 3)
	})
}

func TestDeleteHistoryOlderThan(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	insertTestProduct(t, db, "p1", "sku1", "X")
	insertTestSample(t, db, "p1", "sku1", "X", "2020-01-01", 100)
	insertTestSample(t, db, "p1", "sku1", "X", "2020-01-02", 110)

	_, err := db.Exec(ctx, `
		INSERT INTO price_history (instance_id, product_id, website, price, checked_date, checked_at)
		VALUES ('p1', 'sku1', 'X', 120, CURRENT_DATE, now())`)
	require.NoError(t, err)

	deleted, err := db.DeleteHistoryOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = db.DeleteHistoryOlderThan(ctx, 0)
	assert.Error(t, err)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	t.Run("bootstrap admin once", func(t *testing.T) {
		require.NoError(t, db.EnsureAdmin(ctx, "admin", "admin"))
		require.NoError(t, db.EnsureAdmin(ctx, "admin", "admin"))

		users, err := db.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, models.RoleAdmin, users[0].Role)
	})

	t.Run("authenticate", func(t *testing.T) {
		u, err := db.Authenticate(ctx, "admin", "admin")
		require.NoError(t, err)
		assert.Equal(t, "admin", u.Username)

		_, err = db.Authenticate(ctx, "admin", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("password is stored hashed", func(t *testing.T) {
		var hash string
		err := db.QueryRow(ctx,
			`SELECT password_hash FROM users WHERE username = 'admin'`).Scan(&hash)
		require.NoError(t, err)
		assert.Equal(t, HashPassword("admin"), hash)
		assert.NotEqual(t, "admin", hash)
		assert.Len(t, hash, 64)
	})

	t.Run("last admin is protected", func(t *testing.T) {
		users, err := db.ListUsers(ctx)
		require.NoError(t, err)
		adminID := users[0].ID

		assert.ErrorIs(t, db.DeleteUser(ctx, adminID), ErrLastAdmin)
		assert.ErrorIs(t, db.UpdateUserRole(ctx, adminID, models.RoleUser), ErrLastAdmin)

		_, err = db.CreateUser(ctx, "admin2", "secret", models.RoleAdmin)
		require.NoError(t, err)
		assert.NoError(t, db.UpdateUserRole(ctx, adminID, models.RoleUser))
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := db.CreateUser(ctx, "admin2", "other", models.RoleUser)
		assert.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestRecordSampleRollsBackWithOutbox(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	insertTestProduct(t, db, "p1", "sku1", "X")

	sample := &models.PriceSample{InstanceID: "p1", ProductID: "sku1", Website: "X", Price: 199000}
	err := db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := db.InsertPriceSampleTx(ctx, tx, sample); err != nil {
			return err
		}
		return fmt.Errorf("forced failure")
	})
	require.Error(t, err)

	samples, err := db.QueryPriceHistory(ctx, HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, samples)
}
