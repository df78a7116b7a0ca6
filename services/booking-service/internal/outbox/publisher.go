package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/salonbook/platform/libs/db"
	"github.com/salonbook/platform/libs/kafkax"
	otelx "github.com/salonbook/platform/libs/otel"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
	// Retention is how long published rows are kept before pruning. Zero keeps them forever.
	Retention time.Duration
}

// Publisher relays committed outbox rows to Kafka, one topic per event type.
// Delivery is at least once; consumers dedupe on the event_id header.
type Publisher struct {
	pool    *db.Pool
	repo    *Repository
	logger  *slog.Logger
	brokers []string
	cfg     PublisherConfig
}

const (
	maxBackoff   = 30 * time.Second
	pruneEvery   = time.Hour
	writeTimeout = 10 * time.Second
)

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		pool:    pool,
		repo:    repo,
		logger:  logger.With("component", "outbox"),
		brokers: kafkax.SplitBrokers(cfg.Brokers),
		cfg:     cfg,
	}
}

// Run polls until ctx is done. Without brokers it returns at once and rows accumulate.
func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           writeTimeout,
	}
	defer writer.Close()

	delay := p.cfg.PollEvery
	lastPrune := time.Now()
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		n, err := p.publishBatch(ctx, writer)
		switch {
		case err != nil:
			delay = nextBackoff(delay, p.cfg.PollEvery)
			p.logger.Error("outbox publish failed", "err", err, "retry_in", delay.String())
		case n == p.cfg.BatchSize:
			// Full batch: there is probably more waiting.
			delay = 0
		default:
			delay = p.cfg.PollEvery
		}
		if n > 0 {
			p.logger.Debug("outbox batch published", "count", n)
		}

		if p.cfg.Retention > 0 && time.Since(lastPrune) >= pruneEvery {
			lastPrune = time.Now()
			if pruned, err := p.repo.Prune(ctx, p.cfg.Retention); err != nil {
				p.logger.Warn("outbox prune failed", "err", err)
			} else if pruned > 0 {
				p.logger.Info("outbox pruned", "rows", pruned)
			}
		}
		timer.Reset(delay)
	}
}

// nextBackoff doubles the wait after a failure, capped at maxBackoff.
func nextBackoff(current, base time.Duration) time.Duration {
	if current < base {
		current = base
	}
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// publishBatch claims a batch, writes it to Kafka and marks it published in the same
// transaction, so a failed write leaves the rows for the next attempt.
func (p *Publisher) publishBatch(ctx context.Context, writer MessageWriter) (int, error) {
	var published int
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		records, err := p.repo.Claim(ctx, tx, p.cfg.BatchSize)
		if err != nil || len(records) == 0 {
			return err
		}
		msgs := make([]kafka.Message, len(records))
		ids := make([]int64, len(records))
		for i, r := range records {
			msgs[i] = Message(ctx, r)
			ids[i] = r.ID
		}
		if err := writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		published = len(records)
		return p.repo.MarkPublished(ctx, tx, ids)
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}

// Message converts an outbox record into a Kafka message keyed by aggregate id, carrying
// the trace context captured when the event was written.
func Message(ctx context.Context, r Record) kafka.Message {
	msgCtx := otelx.TraceContext{Traceparent: r.Traceparent, Tracestate: r.Tracestate}.Restore(ctx)
	msg := kafka.Message{
		Topic: r.EventType,
		Key:   []byte(r.AggregateID),
		Value: r.Payload,
		Headers: kafkax.Headers(
			"event_id", r.EventID,
			"event_type", r.EventType,
			"aggregate_type", r.AggregateType,
		),
	}
	msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}
