package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxErrorBackoff    = 10 * time.Second
	errorJitter        = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type rowStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	CountPending(tx *gorm.DB) (int64, error)
}

type relayMetrics interface {
	IncPublished(eventType, result string)
	SetPending(count int64)
}

// sink abstracts the Pub/Sub publisher so tests can stand in for it.
type sink interface {
	Ping(context.Context) error
	Send(ctx context.Context, msg *gcppubsub.Message) error
}

type RelayParams struct {
	Outbox  config.OutboxConfig
	Logger  *logger.Logger
	DB      txRunner
	Rows    rowStore
	Sink    sink
	Metrics relayMetrics
}

// Relay moves committed outbox rows to Pub/Sub. Each batch is claimed with
// row locks inside one transaction, so several relays can run side by side.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	rows        rowStore
	sink        sink
	metrics     relayMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Rows == nil:
		return nil, errors.New("outbox repository is required")
	case p.Sink == nil:
		return nil, errors.New("publish sink is required")
	}

	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		rows:        p.Rows,
		sink:        p.Sink,
		metrics:     p.Metrics,
		batchSize:   p.Outbox.BatchSize,
		maxAttempts: p.Outbox.MaxAttempts,
		poll:        time.Duration(p.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = defaultPoll
	}
	return r, nil
}

// Run drains the outbox until ctx is cancelled. A full batch is followed
// immediately by the next one; failures back off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	if err := r.sink.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub not ready: %w", err)
	}

	backoff := r.errorBackoff()
	for {
		claimed, err := r.drain(ctx)

		var wait time.Duration
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			r.logg.Error(ctx, "outbox.batch_failed", err)
			wait, _ = backoff.Next()
		case claimed >= r.batchSize:
			backoff = r.errorBackoff()
			continue
		default:
			backoff = r.errorBackoff()
			wait = r.poll
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (r *Relay) errorBackoff() retry.Backoff {
	b := retry.NewExponential(r.poll)
	b = retry.WithCappedDuration(maxErrorBackoff, b)
	return retry.WithJitter(errorJitter, b)
}

// drain claims one batch and settles every row in it. It returns how many
// rows were claimed.
func (r *Relay) drain(ctx context.Context) (int, error) {
	claimed := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.rows.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		claimed = len(rows)

		for _, row := range rows {
			if err := r.settle(ctx, tx, row); err != nil {
				return err
			}
		}

		if r.metrics != nil {
			if pending, err := r.rows.CountPending(tx); err == nil {
				r.metrics.SetPending(pending)
			}
		}
		return nil
	})
	return claimed, err
}

// settle publishes one row and records the outcome. Only storage errors are
// returned; publish failures are written back to the row.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt":        row.AttemptCount + 1,
	})

	env, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return r.park(logCtx, tx, row, err)
	}
	logCtx = r.logg.WithField(logCtx, "event_id", env.EventID)

	sendCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	err = r.sink.Send(sendCtx, message(row, env))
	cancel()

	if err == nil {
		if err := r.rows.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		r.count(row, "published")
		r.logg.Debug(logCtx, "outbox.published")
		return nil
	}

	if row.AttemptCount+1 >= r.maxAttempts {
		return r.park(logCtx, tx, row, fmt.Errorf("gave up after %d attempts: %w", r.maxAttempts, err))
	}
	r.logg.Warn(r.logg.WithField(logCtx, "error", err.Error()), "outbox.publish_failed")
	if err := r.rows.MarkFailedTx(tx, row.ID, err); err != nil {
		return fmt.Errorf("mark %s failed: %w", row.ID, err)
	}
	r.count(row, "failed")
	return nil
}

// park takes a row out of rotation for good.
func (r *Relay) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, cause error) error {
	r.logg.Warn(r.logg.WithField(ctx, "error", cause.Error()), "outbox.parked")
	if err := r.rows.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("park %s: %w", row.ID, err)
	}
	r.count(row, "terminal")
	return nil
}

func (r *Relay) count(row models.OutboxEvent, result string) {
	if r.metrics != nil {
		r.metrics.IncPublished(string(row.EventType), result)
	}
}

// message carries routing data as attributes so subscribers can filter
// without decoding the body.
func message(row models.OutboxEvent, env outbox.PayloadEnvelope) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       env.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}
