package session

import (
	"context"
	"errors"
	"time"

	"deskrelay/internal/core/domain"
	"deskrelay/internal/core/ports"
	"deskrelay/internal/infrastructure/framebus"
	apperrors "deskrelay/pkg/errors"
	"deskrelay/pkg/retry"
	"deskrelay/pkg/tracing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Uplink is the producer side of the relay topology: it dials the relay,
// authenticates, streams frames and injects the control messages it receives.
type Uplink struct {
	url     string
	token   []byte
	bus     *framebus.Bus
	control ControlHandler
	metrics ports.MetricsRecorder
	opts    Options
	dialer  *websocket.Dialer
	backoff retry.Config
	logger  *zap.SugaredLogger
}

func NewUplink(
	url string,
	token []byte,
	bus *framebus.Bus,
	control ControlHandler,
	metrics ports.MetricsRecorder,
	opts Options,
	reconnectDelay, reconnectMax time.Duration,
	logger *zap.SugaredLogger,
) *Uplink {
	backoff := retry.DefaultConfig()
	backoff.MaxAttempts = retry.Unlimited
	backoff.InitialDelay = reconnectDelay
	backoff.MaxDelay = reconnectMax

	return &Uplink{
		url:     url,
		token:   token,
		bus:     bus,
		control: control,
		metrics: metrics,
		opts:    opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  64 * 1024,
		},
		backoff: backoff,
		logger:  logger,
	}
}

// Run keeps a relay connection alive until ctx is done. The backoff resets
// after a connection that stayed up longer than the maximum delay.
func (u *Uplink) Run(ctx context.Context) error {
	attempt := 0
	for {
		started := time.Now()
		err := u.RunOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(started) > u.backoff.MaxDelay {
			attempt = 0
		}
		delay := retry.Delay(u.backoff, attempt)
		attempt++

		u.logger.Warnw("Relay connection lost, reconnecting",
			"relay_url", u.url,
			"error", err,
			"attempt", attempt,
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunOnce holds a single relay connection until it ends.
func (u *Uplink) RunOnce(ctx context.Context) error {
	conn, _, err := u.dialer.DialContext(ctx, u.url, nil)
	if err != nil {
		return apperrors.NewTransportError("dial relay", err)
	}
	setNoDelay(conn)

	if u.opts.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(u.opts.WriteTimeout))
	}
	if err := conn.WriteMessage(websocket.TextMessage, u.token); err != nil {
		conn.Close()
		return apperrors.NewTransportError("send auth", err)
	}

	sess := domain.NewSession(conn.RemoteAddr().String(), domain.RoleProducer)
	sess.State = domain.AuthAuthenticated
	ctx, span := tracing.TraceSession(ctx, string(sess.ID), sess.RemoteAddr, string(sess.Role))
	defer span.End()

	u.metrics.RecordSessionOpened(domain.RoleProducer)
	defer func() {
		u.metrics.RecordSessionClosed(domain.RoleProducer, time.Since(sess.ConnectedAt))
	}()
	u.logger.Infow("Connected to relay", "relay_url", u.url, "session_id", sess.ID)

	sub := u.bus.Subscribe()
	defer sub.Close()

	next := func(ctx context.Context) (int, []byte, error) {
		frame, skipped, err := sub.Next(ctx)
		if err != nil {
			return 0, nil, err
		}
		if skipped > 0 {
			u.metrics.RecordFramesSkipped(skipped)
		}
		return websocket.BinaryMessage, frame.Data, nil
	}

	handle := func(ctx context.Context, messageType int, data []byte) {
		// other producers' frames arrive as binary and are not ours to use
		if messageType != websocket.TextMessage {
			return
		}
		_ = u.control.HandleMessage(ctx, data)
	}

	onWrite := func(n int) {
		u.metrics.RecordBytesSent(domain.RoleProducer, n)
	}

	err = runSession(ctx, conn, u.opts, next, handle, onWrite)
	if err != nil && !errors.Is(err, context.Canceled) {
		tracing.RecordError(ctx, err)
	}
	return err
}
