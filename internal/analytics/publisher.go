// Package analytics forwards cart events to Pub/Sub.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/nursingcollective/cartengine/internal/cart"
	"github.com/nursingcollective/cartengine/pkg/logger"
)

const defaultPublishTimeout = 5 * time.Second

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// Publisher is a cart.EventSink. Record hands the message to the Pub/Sub
// batcher and returns; delivery failures are only logged.
type Publisher struct {
	pub     publisher
	logg    *logger.Logger
	timeout time.Duration
	newID   func() string
	pending sync.WaitGroup
}

var _ cart.EventSink = (*Publisher)(nil)

// NewPublisher wraps a Pub/Sub topic publisher.
func NewPublisher(p *gcppubsub.Publisher, timeout time.Duration, logg *logger.Logger) (*Publisher, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher is required")
	}
	return newPublisher(&gcpPublisher{Publisher: p}, timeout, logg), nil
}

func newPublisher(pub publisher, timeout time.Duration, logg *logger.Logger) *Publisher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Publisher{
		pub:     pub,
		logg:    logg,
		timeout: timeout,
		newID:   uuid.NewString,
	}
}

func (p *Publisher) Record(ctx context.Context, event cart.Event) {
	envelope, err := NewEnvelope(p.newID(), event)
	if err != nil {
		p.logg.Error(ctx, "failed to build analytics envelope", err)
		return
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		p.logg.Error(ctx, "failed to encode analytics envelope", err)
		return
	}

	msg := &gcppubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_id":    envelope.EventID,
			"event_type":  envelope.EventType.String(),
			"cart_mode":   event.Mode.String(),
			"occurred_at": envelope.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx := context.WithoutCancel(ctx)
	result := p.pub.Publish(publishCtx, msg)
	if result == nil {
		p.logg.Warn(ctx, "analytics publisher returned no result")
		return
	}

	fields := map[string]any{
		"event_id":   envelope.EventID,
		"event_type": envelope.EventType.String(),
	}
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		waitCtx, cancel := context.WithTimeout(publishCtx, p.timeout)
		defer cancel()
		if _, err := result.Get(waitCtx); err != nil {
			p.logg.Error(p.logg.WithFields(publishCtx, fields), "failed to publish analytics event", err)
			return
		}
		p.logg.Debug(p.logg.WithFields(publishCtx, fields), "analytics event published")
	}()
}

// Flush waits for in-flight publishes or until ctx is done.
func (p *Publisher) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
