package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"deskrelay/internal/core/domain"
	"deskrelay/internal/core/ports"
	"deskrelay/internal/core/services"
	rlog "deskrelay/pkg/logger"
	"deskrelay/pkg/tracing"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ControlHandler consumes text control messages.
type ControlHandler interface {
	HandleMessage(ctx context.Context, payload []byte) error
}

// base holds what direct and relay servers share: upgrade, authentication,
// and the set of live sessions.
type base struct {
	auth     services.AuthService
	metrics  ports.MetricsRecorder
	opts     Options
	upgrader *websocket.Upgrader
	logger   *zap.SugaredLogger
	clog     *rlog.ContextLogger

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
}

func newBase(auth services.AuthService, metrics ports.MetricsRecorder, opts Options, logger *zap.SugaredLogger) *base {
	root, cancel := context.WithCancel(context.Background())
	return &base{
		auth:     auth,
		metrics:  metrics,
		opts:     opts,
		upgrader: newUpgrader(opts),
		logger:   logger,
		clog:     rlog.NewContextLogger(logger.Desugar()),
		root:     root,
		cancel:   cancel,
		sessions: make(map[domain.SessionID]*domain.Session),
	}
}

// accepted is an authenticated connection ready for its session loops.
type accepted struct {
	conn *websocket.Conn
	sess *domain.Session
	ctx  context.Context
	span trace.Span
	log  *zap.SugaredLogger
	done func()
}

// accept upgrades and authenticates one request. It returns false when the
// connection was dropped; in that case nothing has been written to it.
func (b *base) accept(w http.ResponseWriter, r *http.Request, role domain.Role) (*accepted, bool) {
	// Close cancels under mu, so no Add can follow its Wait.
	b.mu.Lock()
	if b.root.Err() != nil {
		b.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return nil, false
	}
	b.wg.Add(1)
	b.mu.Unlock()

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Debugw("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		b.wg.Done()
		return nil, false
	}
	setNoDelay(conn)

	ctx, cancel := context.WithCancel(b.root)
	stop := context.AfterFunc(r.Context(), cancel)

	sess := domain.NewSession(r.RemoteAddr, role)
	// A shutdown during the auth wait closes the socket to unblock the read.
	stopAuth := context.AfterFunc(ctx, func() { conn.Close() })
	err = b.auth.Await(ctx, conn, sess)
	if !stopAuth() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		conn.Close()
		stop()
		cancel()
		b.wg.Done()
		return nil, false
	}

	ctx = rlog.WithSession(ctx, string(sess.ID), sess.RemoteAddr, string(role))
	ctx, span := tracing.TraceSession(ctx, string(sess.ID), sess.RemoteAddr, string(role))

	b.mu.Lock()
	b.sessions[sess.ID] = sess
	b.mu.Unlock()
	b.metrics.RecordSessionOpened(role)

	a := &accepted{
		conn: conn,
		sess: sess,
		ctx:  ctx,
		span: span,
		log:  b.clog.Sugar(ctx),
	}
	a.done = func() {
		b.mu.Lock()
		delete(b.sessions, sess.ID)
		b.mu.Unlock()

		b.metrics.RecordSessionClosed(role, time.Since(sess.ConnectedAt))
		span.End()
		stop()
		cancel()
		b.wg.Done()
	}
	return a, true
}

// finish logs how a session ended and releases it.
func (b *base) finish(a *accepted, err error) {
	if isNormalEnd(err) {
		a.log.Infow("Session closed", "duration", time.Since(a.sess.ConnectedAt))
	} else {
		tracing.RecordError(a.ctx, err)
		a.log.Infow("Session ended", "duration", time.Since(a.sess.ConnectedAt), "error", err)
	}
	a.done()
}

// Sessions returns the number of authenticated sessions.
func (b *base) Sessions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// Close ends every session and waits for their loops to exit.
func (b *base) Close() {
	b.mu.Lock()
	b.cancel()
	b.mu.Unlock()
	b.wg.Wait()
}
