package services

import (
	"sync"
	"time"

	"deskrelay/internal/core/domain"
)

type fakeMetrics struct {
	mu             sync.Mutex
	authAccepted   int
	authRejected   int
	captured       int
	encoded        int
	dropped        map[string]int
	retries        int
	controlEvents  map[domain.EventKind]int
	controlIgnored map[string]int
	injectErrors   int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		dropped:        make(map[string]int),
		controlEvents:  make(map[domain.EventKind]int),
		controlIgnored: make(map[string]int),
	}
}

func (m *fakeMetrics) RecordAuth(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.authAccepted++
	} else {
		m.authRejected++
	}
}

func (m *fakeMetrics) RecordSessionOpened(domain.Role)                {}
func (m *fakeMetrics) RecordSessionClosed(domain.Role, time.Duration) {}
func (m *fakeMetrics) RecordBytesSent(domain.Role, int)               {}
func (m *fakeMetrics) RecordFramesSkipped(int)                        {}
func (m *fakeMetrics) RecordRelayFanout(int, int)                     {}
func (m *fakeMetrics) SetRelayPeers(int)                              {}

func (m *fakeMetrics) RecordFrameCaptured() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captured++
}

func (m *fakeMetrics) RecordFrameEncoded(int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.encoded++
}

func (m *fakeMetrics) RecordFrameDropped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[reason]++
}

func (m *fakeMetrics) RecordCaptureRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *fakeMetrics) RecordControlEvent(kind domain.EventKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controlEvents[kind]++
}

func (m *fakeMetrics) RecordControlIgnored(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controlIgnored[reason]++
}

func (m *fakeMetrics) RecordInjectionError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.injectErrors++
}

func (m *fakeMetrics) snapshot() *fakeMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &fakeMetrics{
		authAccepted:   m.authAccepted,
		authRejected:   m.authRejected,
		captured:       m.captured,
		encoded:        m.encoded,
		retries:        m.retries,
		injectErrors:   m.injectErrors,
		dropped:        make(map[string]int),
		controlEvents:  make(map[domain.EventKind]int),
		controlIgnored: make(map[string]int),
	}
	for k, v := range m.dropped {
		out.dropped[k] = v
	}
	for k, v := range m.controlEvents {
		out.controlEvents[k] = v
	}
	for k, v := range m.controlIgnored {
		out.controlIgnored[k] = v
	}
	return out
}
