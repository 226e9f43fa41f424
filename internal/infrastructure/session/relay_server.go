package session

import (
	"context"
	"net/http"

	"deskrelay/internal/core/domain"
	"deskrelay/internal/core/ports"
	"deskrelay/internal/core/services"
	"deskrelay/internal/infrastructure/relay"

	"go.uber.org/zap"
)

// Presence mirrors hub membership somewhere shared. Errors are logged only.
type Presence interface {
	Join(ctx context.Context, id domain.PeerID) error
	Leave(ctx context.Context, id domain.PeerID) error
}

// RelayServer fans every authenticated peer's messages out to all other
// peers through the hub.
type RelayServer struct {
	*base
	hub      *relay.Hub
	presence Presence
}

func NewRelayServer(
	auth services.AuthService,
	hub *relay.Hub,
	metrics ports.MetricsRecorder,
	opts Options,
	logger *zap.SugaredLogger,
) *RelayServer {
	return &RelayServer{
		base: newBase(auth, metrics, opts, logger),
		hub:  hub,
	}
}

// SetPresence installs p before the server starts accepting peers.
func (s *RelayServer) SetPresence(p Presence) {
	s.presence = p
}

func (s *RelayServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a, ok := s.accept(w, r, domain.RoleRelayPeer)
	if !ok {
		return
	}

	id := a.sess.PeerID()
	peer, err := s.hub.Register(id)
	if err != nil {
		a.log.Warnw("Peer registration failed", "peer_id", id, "error", err)
		a.conn.Close()
		s.finish(a, err)
		return
	}

	if s.presence != nil {
		if err := s.presence.Join(a.ctx, id); err != nil {
			a.log.Warnw("Presence join failed", "peer_id", id, "error", err)
		}
	}

	next := func(ctx context.Context) (int, []byte, error) {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-peer.Done():
			return 0, nil, errPeerGone
		case msg := <-peer.Messages():
			return msg.Type, msg.Data, nil
		}
	}

	handle := func(_ context.Context, messageType int, data []byte) {
		s.hub.Broadcast(relay.Message{Type: messageType, Data: data, From: id})
	}

	onWrite := func(n int) {
		s.metrics.RecordBytesSent(domain.RoleRelayPeer, n)
	}

	err = runSession(a.ctx, a.conn, s.opts, next, handle, onWrite)

	s.hub.Unregister(id)
	if s.presence != nil {
		if err := s.presence.Leave(context.Background(), id); err != nil {
			a.log.Warnw("Presence leave failed", "peer_id", id, "error", err)
		}
	}
	s.finish(a, err)
}
