package session

import (
	"context"
	"net/http"

	"deskrelay/internal/core/domain"
	"deskrelay/internal/core/ports"
	"deskrelay/internal/core/services"
	"deskrelay/internal/infrastructure/framebus"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DirectServer serves viewers of the local display: frames out, control in.
type DirectServer struct {
	*base
	bus     *framebus.Bus
	control ControlHandler
}

func NewDirectServer(
	auth services.AuthService,
	bus *framebus.Bus,
	control ControlHandler,
	metrics ports.MetricsRecorder,
	opts Options,
	logger *zap.SugaredLogger,
) *DirectServer {
	return &DirectServer{
		base:    newBase(auth, metrics, opts, logger),
		bus:     bus,
		control: control,
	}
}

func (s *DirectServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a, ok := s.accept(w, r, domain.RoleViewer)
	if !ok {
		return
	}

	sub := s.bus.Subscribe()
	a.log.Infow("Viewer attached", "subscribers", s.bus.Subscribers())

	next := func(ctx context.Context) (int, []byte, error) {
		frame, skipped, err := sub.Next(ctx)
		if err != nil {
			return 0, nil, err
		}
		if skipped > 0 {
			s.metrics.RecordFramesSkipped(skipped)
			a.log.Debugw("Viewer lagging, frames skipped", "skipped", skipped, "seq", frame.Seq)
		}
		return websocket.BinaryMessage, frame.Data, nil
	}

	handle := func(ctx context.Context, messageType int, data []byte) {
		if messageType != websocket.TextMessage {
			s.metrics.RecordControlIgnored("binary")
			return
		}
		_ = s.control.HandleMessage(ctx, data)
	}

	onWrite := func(n int) {
		s.metrics.RecordBytesSent(domain.RoleViewer, n)
	}

	err := runSession(a.ctx, a.conn, s.opts, next, handle, onWrite)
	sub.Close()
	s.finish(a, err)
}
