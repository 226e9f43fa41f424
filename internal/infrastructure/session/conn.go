package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	apperrors "deskrelay/pkg/errors"

	"github.com/gorilla/websocket"
)

// nextFunc blocks until the next outbound message is ready.
type nextFunc func(ctx context.Context) (messageType int, data []byte, err error)

// handleFunc consumes one inbound message.
type handleFunc func(ctx context.Context, messageType int, data []byte)

// errPeerGone ends a session whose outbound source was closed.
var errPeerGone = errors.New("outbound source closed")

func setNoDelay(conn *websocket.Conn) {
	if tcp, ok := conn.UnderlyingConn().(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
}

// runSession drives an authenticated connection with an inbound reader, an
// outbound writer and, when enabled, a keepalive pinger. The first loop to
// end cancels the others and closes conn without a close handshake. The
// returned error is the one that ended the session.
func runSession(
	ctx context.Context,
	conn *websocket.Conn,
	opts Options,
	next nextFunc,
	handle handleFunc,
	onWrite func(n int),
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
		wg       sync.WaitGroup
	)
	finish := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
			conn.Close()
		})
	}

	if opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(opts.MaxMessageBytes)
	}
	if opts.PingInterval > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
		})
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		finish(readLoop(ctx, conn, handle))
	}()
	go func() {
		defer wg.Done()
		finish(writeLoop(ctx, conn, opts, next, onWrite))
	}()

	if opts.PingInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			finish(pingLoop(ctx, conn, opts))
		}()
	}

	// Unblocks the reader when the caller's context ends.
	go func() {
		<-ctx.Done()
		finish(ctx.Err())
	}()

	wg.Wait()
	return firstErr
}

func readLoop(ctx context.Context, conn *websocket.Conn, handle handleFunc) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return apperrors.NewTransportError("read", err)
		}
		handle(ctx, messageType, data)
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, opts Options, next nextFunc, onWrite func(int)) error {
	for {
		messageType, data, err := next(ctx)
		if err != nil {
			return err
		}
		if opts.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
		}
		if err := conn.WriteMessage(messageType, data); err != nil {
			return apperrors.NewTransportError("write", err)
		}
		if onWrite != nil {
			onWrite(len(data))
		}
	}
}

func pingLoop(ctx context.Context, conn *websocket.Conn, opts Options) error {
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			deadline := time.Now().Add(opts.WriteTimeout)
			if opts.WriteTimeout <= 0 {
				deadline = time.Now().Add(opts.PingInterval)
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return apperrors.NewTransportError("ping", err)
			}
		}
	}
}

// isNormalEnd reports errors that mean the peer or the server simply went
// away.
func isNormalEnd(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, errPeerGone) {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return true
		}
	}
	return errors.Is(err, net.ErrClosed)
}
