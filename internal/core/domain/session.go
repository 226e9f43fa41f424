package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string

// PeerID is the connection identity used by the relay registry.
type PeerID string

type Role string

const (
	RoleProducer  Role = "producer"
	RoleViewer    Role = "viewer"
	RoleRelayPeer Role = "relay_peer"
)

// AuthState tracks a session through the authentication gate.
// AuthAuthenticated and AuthRejected are terminal.
type AuthState int

const (
	AuthAwaiting AuthState = iota
	AuthAuthenticated
	AuthRejected
)

func (s AuthState) String() string {
	switch s {
	case AuthAwaiting:
		return "awaiting_auth"
	case AuthAuthenticated:
		return "authenticated"
	case AuthRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type Session struct {
	ID          SessionID
	RemoteAddr  string
	Role        Role
	State       AuthState
	ConnectedAt time.Time
}

func NewSession(remoteAddr string, role Role) *Session {
	return &Session{
		ID:          SessionID(uuid.NewString()),
		RemoteAddr:  remoteAddr,
		Role:        role,
		State:       AuthAwaiting,
		ConnectedAt: time.Now(),
	}
}

// PeerID returns the registry identity of the session. The session id suffix
// keeps two connections from the same address apart.
func (s *Session) PeerID() PeerID {
	id := string(s.ID)
	if len(id) > 8 {
		id = id[:8]
	}
	return PeerID(s.RemoteAddr + "#" + id)
}

func (s *Session) Authenticated() bool {
	return s.State == AuthAuthenticated
}
