package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"deskrelay/internal/core/domain"
	"deskrelay/internal/infrastructure/relay"
	"deskrelay/pkg/circuitbreaker"
	"deskrelay/pkg/tracing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Envelope carries one relay message between relay instances.
type Envelope struct {
	InstanceID string        `json:"instance_id"`
	Type       int           `json:"type"`
	From       domain.PeerID `json:"from"`
	Data       []byte        `json:"data"`
	SentAt     time.Time     `json:"sent_at"`
}

// RemoteSink delivers messages that arrived from other instances.
type RemoteSink interface {
	BroadcastRemote(msg relay.Message) int
}

// RelayBridge shares relay traffic between relay instances through a Redis
// pub/sub channel. It implements relay.Forwarder.
type RelayBridge struct {
	client     *redis.Client
	channel    string
	instanceID string
	sink       RemoteSink
	outbox     chan relay.Message
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.SugaredLogger
}

func NewRelayBridge(
	client *redis.Client,
	channel string,
	instanceID string,
	sink RemoteSink,
	queueSize int,
	logger *zap.SugaredLogger,
) *RelayBridge {
	if queueSize < 1 {
		queueSize = 1
	}
	b := &RelayBridge{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		sink:       sink,
		outbox:     make(chan relay.Message, queueSize),
		breaker:    circuitbreaker.New(circuitbreaker.DefaultConfig()),
		logger:     logger,
	}
	b.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		b.logger.Warnw("Relay bridge publish breaker changed state",
			"from", from.String(),
			"to", to.String(),
		)
	})
	return b
}

// Forward queues msg for publication. Messages are dropped while the outbox
// is full.
func (b *RelayBridge) Forward(msg relay.Message) {
	select {
	case b.outbox <- msg:
	default:
		b.logger.Debugw("Relay bridge outbox full, dropping message",
			"from", msg.From,
			"bytes", len(msg.Data),
		)
	}
}

// Run publishes forwarded messages and delivers remote ones until ctx is
// done.
func (b *RelayBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Infow("Relay bridge subscribed",
		"channel", b.channel,
		"instance_id", b.instanceID,
	)

	incoming := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.outbox:
			if err := b.publish(ctx, msg); err != nil && !errors.Is(err, circuitbreaker.ErrOpen) {
				b.logger.Warnw("Relay bridge publish failed", "error", err)
			}
		case m, ok := <-incoming:
			if !ok {
				return fmt.Errorf("relay bridge subscription closed")
			}
			b.handle(m.Payload)
		}
	}
}

// publish sends msg to the shared channel. While Redis keeps failing the
// breaker opens and messages are dropped with circuitbreaker.ErrOpen.
func (b *RelayBridge) publish(ctx context.Context, msg relay.Message) error {
	data, err := b.encode(msg)
	if err != nil {
		return err
	}

	return b.breaker.Execute(func() error {
		ctx, span := tracing.TraceRelayPublish(ctx, len(msg.Data))
		defer span.End()

		if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
			tracing.RecordError(ctx, err)
			return fmt.Errorf("failed to publish relay message: %w", err)
		}
		return nil
	})
}

func (b *RelayBridge) encode(msg relay.Message) ([]byte, error) {
	data, err := json.Marshal(Envelope{
		InstanceID: b.instanceID,
		Type:       msg.Type,
		From:       msg.From,
		Data:       msg.Data,
		SentAt:     time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

// handle decodes one pub/sub payload and hands it to the sink unless it was
// published by this instance.
func (b *RelayBridge) handle(payload string) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warnw("Failed to unmarshal relay envelope", "error", err)
		return
	}
	if env.InstanceID == b.instanceID {
		return
	}

	n := b.sink.BroadcastRemote(relay.Message{
		Type: env.Type,
		Data: env.Data,
		From: env.From,
	})
	b.logger.Debugw("Remote relay message delivered",
		"instance_id", env.InstanceID,
		"recipients", n,
		"latency", time.Since(env.SentAt),
	)
}

// PublishStats reports the state of the publish circuit breaker.
func (b *RelayBridge) PublishStats() circuitbreaker.Stats {
	return b.breaker.Stats()
}

// Ping reports whether Redis is reachable.
func (b *RelayBridge) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
