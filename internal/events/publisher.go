package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hieudev/pricewatch/internal/database"
	"github.com/hieudev/pricewatch/internal/models"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypePriceChecked is published after a price sample is recorded
	EventTypePriceChecked EventType = "PRICE_CHECKED"
)

// PriceCheckedPayload represents the payload for PRICE_CHECKED events
type PriceCheckedPayload struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	InstanceID  string    `json:"instance_id"`
	ProductID   string    `json:"product_id"`
	Website     string    `json:"website"`
	Price       int64     `json:"price"`
	CheckedDate string    `json:"checked_date"`
	Source      string    `json:"source"`
}

// Publisher records price samples and publishes events using the
// transactional outbox pattern: the history row and the outbox row are
// written in the same transaction, so a sample is never recorded without
// its event and vice versa.
type Publisher struct {
	db     *database.DB
	outbox *database.OutboxRepository
	logger *slog.Logger
}

// NewPublisher creates a new event publisher with database connection
func NewPublisher(db *database.DB, logger *slog.Logger) *Publisher {
	return &Publisher{
		db:     db,
		outbox: database.NewOutboxRepository(db),
		logger: logger.With("component", "event_publisher"),
	}
}

// RecordPriceChecked inserts the sample into price history and enqueues a
// PRICE_CHECKED outbox event in a single transaction. On success the
// sample's ID, CheckedDate and CheckedAt are filled in.
func (p *Publisher) RecordPriceChecked(ctx context.Context, sample *models.PriceSample) error {
	err := p.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := p.db.InsertPriceSampleTx(ctx, tx, sample); err != nil {
			return fmt.Errorf("failed to insert price sample: %w", err)
		}

		payload := &PriceCheckedPayload{
			EventID:     uuid.New().String(),
			EventType:   string(EventTypePriceChecked),
			Timestamp:   time.Now(),
			InstanceID:  sample.InstanceID,
			ProductID:   sample.ProductID,
			Website:     sample.Website,
			Price:       sample.Price,
			CheckedDate: sample.CheckedDate,
			Source:      "pricewatch",
		}

		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		outboxEvent := &database.OutboxEvent{
			AggregateType: "product",
			AggregateID:   sample.InstanceID,
			EventType:     string(EventTypePriceChecked),
			Payload:       data,
			TargetStream:  database.DefaultTargetStream,
		}

		if err := p.outbox.InsertWithTx(ctx, tx, outboxEvent); err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to record price sample: %w", err)
	}

	p.logger.Info("price sample recorded",
		"instance_id", sample.InstanceID,
		"website", sample.Website,
		"price", sample.Price)

	return nil
}
