package relay

import (
	"sort"
	"sync"

	"deskrelay/internal/core/domain"
	"deskrelay/internal/core/ports"

	"go.uber.org/zap"
)

// Message is one WebSocket message in transit through the hub. Type is the
// gorilla message type and is preserved end to end.
type Message struct {
	Type int
	Data []byte
	From domain.PeerID
}

// Forwarder receives every locally originated message, e.g. to share it with
// other relay instances. Forward must not block.
type Forwarder interface {
	Forward(msg Message)
}

type Peer struct {
	id       domain.PeerID
	queue    chan Message
	done     chan struct{}
	doneOnce sync.Once
}

func (p *Peer) ID() domain.PeerID { return p.id }

// Messages is drained by the peer's delivery loop. It is never closed; use
// Done to learn that the peer left the hub.
func (p *Peer) Messages() <-chan Message { return p.queue }

func (p *Peer) Done() <-chan struct{} { return p.done }

func (p *Peer) close() {
	p.doneOnce.Do(func() { close(p.done) })
}

// offer enqueues msg without blocking.
func (p *Peer) offer(msg Message) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.queue <- msg:
		return true
	default:
		return false
	}
}

type Hub struct {
	mu        sync.RWMutex
	peers     map[domain.PeerID]*Peer
	queueSize int
	forwarder Forwarder
	metrics   ports.MetricsRecorder
	logger    *zap.SugaredLogger
}

func NewHub(queueSize int, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *Hub {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Hub{
		peers:     make(map[domain.PeerID]*Peer),
		queueSize: queueSize,
		metrics:   metrics,
		logger:    logger,
	}
}

// SetForwarder installs f before the hub starts serving peers.
func (h *Hub) SetForwarder(f Forwarder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forwarder = f
}

func (h *Hub) Register(id domain.PeerID) (*Peer, error) {
	h.mu.Lock()
	if _, exists := h.peers[id]; exists {
		h.mu.Unlock()
		return nil, domain.ErrPeerExists
	}
	p := &Peer{
		id:    id,
		queue: make(chan Message, h.queueSize),
		done:  make(chan struct{}),
	}
	h.peers[id] = p
	n := len(h.peers)
	h.mu.Unlock()

	h.metrics.SetRelayPeers(n)
	h.logger.Infow("Peer registered", "peer_id", id, "peers", n)
	return p, nil
}

// Unregister removes id and reports whether it was registered.
func (h *Hub) Unregister(id domain.PeerID) bool {
	h.mu.Lock()
	p, exists := h.peers[id]
	if exists {
		delete(h.peers, id)
	}
	n := len(h.peers)
	h.mu.Unlock()

	if !exists {
		return false
	}
	p.close()

	h.metrics.SetRelayPeers(n)
	h.logger.Infow("Peer unregistered", "peer_id", id, "peers", n)
	return true
}

// Broadcast enqueues msg for every peer except msg.From and hands it to the
// forwarder. It returns the number of peers it was enqueued for.
func (h *Hub) Broadcast(msg Message) int {
	h.mu.RLock()
	forwarder := h.forwarder
	h.mu.RUnlock()

	delivered := h.fanout(msg, msg.From)
	if forwarder != nil {
		forwarder.Forward(msg)
	}
	return delivered
}

// BroadcastRemote delivers a message received from another relay instance
// to every local peer.
func (h *Hub) BroadcastRemote(msg Message) int {
	return h.fanout(msg, "")
}

func (h *Hub) fanout(msg Message, skip domain.PeerID) int {
	h.mu.RLock()
	recipients := make([]*Peer, 0, len(h.peers))
	for id, p := range h.peers {
		if id == skip {
			continue
		}
		recipients = append(recipients, p)
	}
	h.mu.RUnlock()

	delivered, dropped := 0, 0
	for _, p := range recipients {
		if p.offer(msg) {
			delivered++
		} else {
			dropped++
		}
	}

	h.metrics.RecordRelayFanout(delivered, dropped)
	if dropped > 0 {
		h.logger.Debugw("Relay dropped message for slow peers",
			"from", msg.From,
			"dropped", dropped,
			"bytes", len(msg.Data),
		)
	}
	return delivered
}

// Peers returns the registered ids in sorted order.
func (h *Hub) Peers() []domain.PeerID {
	h.mu.RLock()
	ids := make([]domain.PeerID, 0, len(h.peers))
	for id := range h.peers {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}
