package relay

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"deskrelay/internal/core/domain"
	"deskrelay/internal/infrastructure/monitoring"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestHub(t *testing.T, queueSize int) *Hub {
	t.Helper()
	metrics := monitoring.NewPrometheusCollector(prometheus.NewRegistry())
	return NewHub(queueSize, metrics, zaptest.NewLogger(t).Sugar())
}

func drain(p *Peer) []Message {
	var out []Message
	for {
		select {
		case m := <-p.Messages():
			out = append(out, m)
		default:
			return out
		}
	}
}

type recordingForwarder struct {
	mu   sync.Mutex
	msgs []Message
}

func (f *recordingForwarder) Forward(msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func TestHub_RegisterRejectsDuplicates(t *testing.T) {
	hub := newTestHub(t, 4)

	_, err := hub.Register("a")
	require.NoError(t, err)
	_, err = hub.Register("a")
	assert.ErrorIs(t, err, domain.ErrPeerExists)
	assert.Equal(t, 1, hub.Len())
}

func TestHub_BroadcastSkipsSender(t *testing.T) {
	hub := newTestHub(t, 4)
	a, _ := hub.Register("a")
	b, _ := hub.Register("b")
	c, _ := hub.Register("c")

	n := hub.Broadcast(Message{Type: websocket.BinaryMessage, Data: []byte("frame"), From: "a"})

	assert.Equal(t, 2, n)
	assert.Empty(t, drain(a))
	for _, p := range []*Peer{b, c} {
		got := drain(p)
		require.Len(t, got, 1)
		assert.Equal(t, websocket.BinaryMessage, got[0].Type)
		assert.Equal(t, []byte("frame"), got[0].Data)
		assert.Equal(t, domain.PeerID("a"), got[0].From)
	}
}

func TestHub_BroadcastAlone(t *testing.T) {
	hub := newTestHub(t, 4)
	a, _ := hub.Register("a")

	assert.Equal(t, 0, hub.Broadcast(Message{Type: websocket.TextMessage, Data: []byte("x"), From: "a"}))
	assert.Empty(t, drain(a))
}

func TestHub_FullQueueDropsOnlyForThatPeer(t *testing.T) {
	hub := newTestHub(t, 2)
	_, _ = hub.Register("sender")
	slow, _ := hub.Register("slow")
	fast, _ := hub.Register("fast")

	var fastGot int
	for i := 0; i < 5; i++ {
		hub.Broadcast(Message{Type: websocket.BinaryMessage, Data: []byte{byte(i)}, From: "sender"})
		fastGot += len(drain(fast))
	}

	assert.Equal(t, 5, fastGot)
	got := drain(slow)
	require.Len(t, got, 2)
	assert.Equal(t, []byte{0}, got[0].Data)
	assert.Equal(t, []byte{1}, got[1].Data)
}

func TestHub_UnregisterOnce(t *testing.T) {
	hub := newTestHub(t, 2)
	p, _ := hub.Register("a")

	assert.True(t, hub.Unregister("a"))
	assert.False(t, hub.Unregister("a"))
	assert.Equal(t, 0, hub.Len())

	select {
	case <-p.Done():
	default:
		t.Fatal("peer not marked done")
	}

	// the id may be reused
	_, err := hub.Register("a")
	assert.NoError(t, err)
}

func TestHub_BroadcastRemoteReachesEveryone(t *testing.T) {
	hub := newTestHub(t, 2)
	fwd := &recordingForwarder{}
	hub.SetForwarder(fwd)
	a, _ := hub.Register("a")
	b, _ := hub.Register("b")

	n := hub.BroadcastRemote(Message{Type: websocket.TextMessage, Data: []byte("hi"), From: "elsewhere"})

	assert.Equal(t, 2, n)
	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	assert.Empty(t, fwd.msgs)
}

func TestHub_BroadcastForwardsLocalMessages(t *testing.T) {
	hub := newTestHub(t, 2)
	fwd := &recordingForwarder{}
	hub.SetForwarder(fwd)
	_, _ = hub.Register("a")

	hub.Broadcast(Message{Type: websocket.TextMessage, Data: []byte("hi"), From: "a"})

	require.Len(t, fwd.msgs, 1)
	assert.Equal(t, domain.PeerID("a"), fwd.msgs[0].From)
}

func TestHub_Peers(t *testing.T) {
	hub := newTestHub(t, 2)
	_, _ = hub.Register("b")
	_, _ = hub.Register("a")
	assert.Equal(t, []domain.PeerID{"a", "b"}, hub.Peers())
}

func TestHub_ConcurrentChurn(t *testing.T) {
	hub := newTestHub(t, 8)
	stop := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				hub.Broadcast(Message{Type: websocket.BinaryMessage, Data: []byte("x"), From: "producer"})
			}
		}
	}()

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := domain.PeerID(fmt.Sprintf("peer-%d", i))
			for j := 0; j < 50; j++ {
				p, err := hub.Register(id)
				if err != nil {
					continue
				}
				drain(p)
				hub.Unregister(id)
			}
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
	assert.Equal(t, 0, hub.Len())
}
