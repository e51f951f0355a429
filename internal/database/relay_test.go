package database

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRedisClient is a mock for Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0") // Mock stream ID
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockOutboxRepository is a mock for OutboxRepository
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, err error) error {
	args := m.Called(ctx, id, err)
	return args.Error(0)
}

func TestRelay_ProcessEvents(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("successfully process and publish events", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{
			redis:     mockRedis,
			outbox:    mockOutbox,
			logger:    logger,
			batchSize: 10,
		}

		events := []*OutboxEvent{
			{
				ID:            uuid.New(),
				AggregateType: "product",
				AggregateID:   "p1",
				EventType:     "PRICE_CHECKED",
				Payload:       json.RawMessage(`{"instanceId":"p1","price":199000}`),
				TargetStream:  DefaultTargetStream,
			},
			{
				ID:            uuid.New(),
				AggregateType: "product",
				AggregateID:   "p2",
				EventType:     "PRICE_CHECKED",
				Payload:       json.RawMessage(`{"instanceId":"p2","price":24990000}`),
				TargetStream:  DefaultTargetStream,
			},
		}

		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)

		for _, event := range events {
			event := event // per-iteration copy for the closure below (pre-Go 1.22 loopvar semantics)
			mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
				return args.Stream == event.TargetStream &&
					args.Values.(map[string]interface{})["event_type"] == event.EventType &&
					args.Values.(map[string]interface{})["aggregate_id"] == event.AggregateID
			})).Return(nil)

			mockOutbox.On("MarkProcessed", ctx, event.ID).Return(nil)
		}

		err := relay.processEvents(ctx)
		require.NoError(t, err)

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("handle Redis publish failure", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{
			redis:     mockRedis,
			outbox:    mockOutbox,
			logger:    logger,
			batchSize: 10,
		}

		event := &OutboxEvent{
			ID:            uuid.New(),
			AggregateType: "product",
			AggregateID:   "p1",
			EventType:     "PRICE_CHECKED",
			Payload:       json.RawMessage(`{"instanceId":"p1"}`),
			TargetStream:  DefaultTargetStream,
		}

		publishErr := errors.New("redis connection refused")

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{event}, nil)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(publishErr)
		mockOutbox.On("MarkFailed", ctx, event.ID, mock.Anything).Return(nil)

		err := relay.processEvents(ctx)
		require.NoError(t, err) // batch keeps going, the event is retried later

		mockOutbox.AssertCalled(t, "MarkFailed", ctx, event.ID, mock.Anything)
		mockOutbox.AssertNotCalled(t, "MarkProcessed", ctx, event.ID)
	})

	t.Run("invalid payload goes to MarkFailed", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{
			redis:     mockRedis,
			outbox:    mockOutbox,
			logger:    logger,
			batchSize: 10,
		}

		event := &OutboxEvent{
			ID:           uuid.New(),
			AggregateID:  "p1",
			EventType:    "PRICE_CHECKED",
			Payload:      json.RawMessage(`not-json`),
			TargetStream: DefaultTargetStream,
		}

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{event}, nil)
		mockOutbox.On("MarkFailed", ctx, event.ID, mock.Anything).Return(nil)

		err := relay.processEvents(ctx)
		require.NoError(t, err)

		mockRedis.AssertNotCalled(t, "XAdd", ctx, mock.Anything)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("empty outbox is a no-op", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{
			redis:     mockRedis,
			outbox:    mockOutbox,
			logger:    logger,
			batchSize: 10,
		}

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{}, nil)

		err := relay.processEvents(ctx)
		assert.NoError(t, err)
		mockRedis.AssertNotCalled(t, "XAdd", ctx, mock.Anything)
	})
}
