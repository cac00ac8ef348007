package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
)

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher publishes run events to a RabbitMQ exchange.
//
// Publish failures are logged and counted, never returned: a broker outage
// must not fail the run.
type AMQPPublisher struct {
	ch         Channel
	exchange   string
	logger     *slog.Logger
	timeout    time.Duration
	persistent bool

	published atomic.Int64
	failed    atomic.Int64
}

// Option configures an AMQPPublisher.
type Option func(*AMQPPublisher)

// WithLogger sets the logger for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *AMQPPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPublishTimeout bounds each publish. Default: 5s.
func WithPublishTimeout(d time.Duration) Option {
	return func(p *AMQPPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithTransient publishes with transient delivery mode instead of persistent.
func WithTransient() Option {
	return func(p *AMQPPublisher) { p.persistent = false }
}

// NewAMQPPublisher creates a publisher on ch targeting exchange.
func NewAMQPPublisher(ch Channel, exchange string, opts ...Option) *AMQPPublisher {
	p := &AMQPPublisher{
		ch:         ch,
		exchange:   exchange,
		logger:     slog.Default(),
		timeout:    5 * time.Second,
		persistent: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnEvent implements stepgraph.Listener.
func (p *AMQPPublisher) OnEvent(ctx context.Context, e stepgraph.Event) {
	if err := p.Publish(ctx, e); err != nil {
		p.failed.Add(1)
		p.logger.Warn("event publish failed",
			slog.String("run_id", e.RunID),
			slog.String("kind", string(e.Kind)),
			slog.String("error", err.Error()),
		)
		return
	}
	p.published.Add(1)
}

// Publish sends one event and returns any broker error.
//
// The run's cancellation does not abort the publish, so run.failed events
// for cancelled runs still go out.
func (p *AMQPPublisher) Publish(ctx context.Context, e stepgraph.Event) error {
	env := Wrap(e)
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	mode := amqp.Transient
	if p.persistent {
		mode = amqp.Persistent
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	err = p.ch.PublishWithContext(pubCtx, p.exchange, env.Type, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  mode,
		MessageId:     env.ID,
		CorrelationId: env.CorrelationID,
		Timestamp:     env.Timestamp,
		Type:          env.Type,
		AppId:         Source,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", p.exchange, env.Type, err)
	}
	return nil
}

// Published returns the number of events delivered to the broker.
func (p *AMQPPublisher) Published() int64 { return p.published.Load() }

// Failed returns the number of events that could not be published.
func (p *AMQPPublisher) Failed() int64 { return p.failed.Load() }

var _ stepgraph.Listener = (*AMQPPublisher)(nil)

// DialAMQP connects to url, opens a channel and declares exchange as a
// durable topic exchange. The returned func closes the channel and the
// connection.
func DialAMQP(ctx context.Context, url, exchange string) (*amqp.Channel, func() error, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Dial: amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	if err := ctx.Err(); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, err
	}

	closeFn := func() error {
		chErr := ch.Close()
		connErr := conn.Close()
		if chErr != nil {
			return chErr
		}
		return connErr
	}
	return ch, closeFn, nil
}
