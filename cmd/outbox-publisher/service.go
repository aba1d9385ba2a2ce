package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/localmarket/marketplace-backend/pkg/config"
	"github.com/localmarket/marketplace-backend/pkg/db/models"
	"github.com/localmarket/marketplace-backend/pkg/enums"
	"github.com/localmarket/marketplace-backend/pkg/logger"
	"github.com/localmarket/marketplace-backend/pkg/metrics"
	"github.com/localmarket/marketplace-backend/pkg/outbox"
	"github.com/localmarket/marketplace-backend/pkg/outbox/registry"
)

const (
	relayName      = "outbox-publisher"
	publishTimeout = 15 * time.Second
	maxBackoff     = 10 * time.Second
	jitter         = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pinger interface {
	Ping(context.Context) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	CountPending(ctx context.Context) (int64, error)
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// dedupeGuard remembers events already handed to the broker.
type dedupeGuard interface {
	Reserve(ctx context.Context, relay string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, relay string, eventID uuid.UUID) error
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Outbox        config.OutboxConfig
	Logger        *logger.Logger
	DB            dbClient
	Broker        pinger
	Publishers    publisherFactory
	Repository    outboxRepository
	DLQRepository dlqRepository
	Registry      registryResolver
	// Dedupe is optional; without it a crash between publish and commit
	// republishes the batch.
	Dedupe  dedupeGuard
	Metrics *metrics.OutboxMetrics
}

// Service relays committed outbox rows to Pub/Sub.
type Service struct {
	logg       *logger.Logger
	db         dbClient
	broker     pinger
	publishers publisherFactory
	repo       outboxRepository
	dlq        dlqRepository
	registry   registryResolver
	dedupe     dedupeGuard
	metrics    *metrics.OutboxMetrics

	batch       int
	maxAttempts int
	idle        time.Duration
	now         func() time.Time
}

func missing(name string, absent bool) error {
	if absent {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

func NewService(p ServiceParams) (*Service, error) {
	if err := multierr.Combine(
		missing("logger", p.Logger == nil),
		missing("database client", p.DB == nil),
		missing("pubsub client", p.Broker == nil),
		missing("publisher factory", p.Publishers == nil),
		missing("outbox repository", p.Repository == nil),
		missing("dlq repository", p.DLQRepository == nil),
		missing("event registry", p.Registry == nil),
	); err != nil {
		return nil, err
	}
	return &Service{
		logg:        p.Logger,
		db:          p.DB,
		broker:      p.Broker,
		publishers:  p.Publishers,
		repo:        p.Repository,
		dlq:         p.DLQRepository,
		registry:    p.Registry,
		dedupe:      p.Dedupe,
		metrics:     p.Metrics,
		batch:       orDefault(p.Outbox.BatchSize, 50),
		maxAttempts: orDefault(p.Outbox.MaxAttempts, 10),
		idle:        p.Outbox.PollInterval(),
		now:         time.Now,
	}, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one; failed batches back off exponentially with jitter.
func (s *Service) Run(ctx context.Context) error {
	if err := multierr.Combine(s.db.Ping(ctx), s.broker.Ping(ctx)); err != nil {
		return fmt.Errorf("relay dependencies: %w", err)
	}

	var backoff retry.Backoff
	for ctx.Err() == nil {
		worked, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch.failed", err)
			if backoff == nil {
				backoff = retry.WithJitter(jitter, retry.WithCappedDuration(maxBackoff, retry.NewExponential(s.idle)))
			}
			wait, _ := backoff.Next()
			_ = pause(ctx, wait)
		case worked:
			backoff = nil
		default:
			backoff = nil
			s.samplePending(ctx)
			_ = pause(ctx, s.idle)
		}
	}
	return ctx.Err()
}

// samplePending refreshes the backlog gauge. Exhausted rows stay counted
// until someone replays or purges them.
func (s *Service) samplePending(ctx context.Context) {
	n, err := s.repo.CountPending(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox.pending.count_failed")
		return
	}
	s.metrics.SetPending(n)
}

// processBatch locks up to s.batch rows and settles each one inside the same
// transaction. It reports whether any rows were claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var claimed int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.FetchUnpublishedForPublish(tx, s.batch, s.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(rows)
		for _, row := range rows {
			if err := s.settle(ctx, tx, row, s.attempt(ctx, row)); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed > 0, err
}

type verdict int

const (
	published verdict = iota
	duplicate
	retryLater
	deadLetter
)

type outcome struct {
	verdict verdict
	reason  enums.OutboxDLQErrorReason
	topic   string
	err     error
}

// attempt resolves and publishes a row. It never touches the database.
func (s *Service) attempt(ctx context.Context, row models.OutboxEvent) outcome {
	resolved, err := s.registry.Resolve(row)
	if err != nil {
		return outcome{verdict: deadLetter, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}
	topic := resolved.Route.Topic

	reserved := false
	if s.dedupe != nil {
		ok, err := s.dedupe.Reserve(ctx, relayName, row.ID)
		switch {
		case err != nil:
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox.dedupe.unavailable")
		case !ok:
			return outcome{verdict: duplicate, topic: topic}
		default:
			reserved = true
		}
	}

	err = s.send(ctx, topic, row, resolved.Envelope)
	if err == nil {
		return outcome{verdict: published, topic: topic}
	}
	if reserved {
		if relErr := s.dedupe.Release(ctx, relayName, row.ID); relErr != nil {
			s.logg.Error(ctx, "outbox.dedupe.release_failed", relErr)
		}
	}
	switch {
	case registry.IsPermanent(err):
		return outcome{verdict: deadLetter, reason: enums.OutboxDLQReasonNonRetryable, topic: topic, err: err}
	case row.AttemptCount+1 >= s.maxAttempts:
		return outcome{verdict: deadLetter, reason: enums.OutboxDLQReasonMaxAttempts, topic: topic,
			err: fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err)}
	}
	return outcome{verdict: retryLater, topic: topic, err: err}
}

// settle writes the outcome onto the row. Only bookkeeping errors are
// returned; they abort the batch so the rows are picked up again.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, o outcome) error {
	ctx = s.logg.WithFields(ctx, rowFields(row, o.topic))
	eventType := string(row.EventType)

	switch o.verdict {
	case published, duplicate:
		if err := s.repo.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		if o.verdict == duplicate {
			s.logg.Info(ctx, "outbox.event.already_published")
			return nil
		}
		s.metrics.IncPublished(eventType)
		s.logg.Info(ctx, "outbox.event.published")

	case retryLater:
		s.metrics.IncFailed(eventType, false)
		s.logg.Warn(s.logg.WithField(ctx, "error", o.err.Error()), "outbox.event.publish_failed")
		if err := s.repo.MarkFailedTx(tx, row.ID, o.err); err != nil {
			return fmt.Errorf("mark failed %s: %w", row.ID, err)
		}

	case deadLetter:
		s.metrics.IncFailed(eventType, true)
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"error": o.err.Error(), "error_reason": o.reason}), "outbox.event.dead_lettered")
		msg := o.err.Error()
		entry := models.OutboxDLQ{
			EventID:       row.ID,
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			AggregateID:   row.AggregateID,
			Payload:       row.Payload,
			ErrorReason:   o.reason,
			ErrorMessage:  &msg,
			AttemptCount:  row.AttemptCount,
			FailedAt:      s.now().UTC(),
		}
		if err := s.dlq.InsertTx(tx, entry); err != nil {
			return fmt.Errorf("insert dlq %s: %w", row.ID, err)
		}
		if err := s.repo.MarkTerminalTx(tx, row.ID, o.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", row.ID, err)
		}
	}
	return nil
}

// send hands the stored envelope to the broker and waits for the ack.
func (s *Service) send(ctx context.Context, topic string, row models.OutboxEvent, env outbox.PayloadEnvelope) error {
	pub := s.publishers(topic)
	if pub == nil {
		return registry.Permanent(fmt.Errorf("no publisher for topic %s", topic))
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	res := pub.Publish(ctx, &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       env.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if res == nil {
		return registry.Permanent(errors.New("publisher returned no result"))
	}
	_, err := res.Get(ctx)
	return err
}

func rowFields(row models.OutboxEvent, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// brokerPublishers adapts the Pub/Sub client to the relay's publisher seam.
func brokerPublishers(open func(topic string) *gcppubsub.Publisher) publisherFactory {
	return func(topic string) publisher {
		p := open(topic)
		if p == nil {
			return nil
		}
		return gcpPublisher{p}
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
