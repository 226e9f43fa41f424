package session

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// ConnKind is the decision taken once per accepted request before any
// WebSocket logic runs.
type ConnKind int

const (
	KindContent ConnKind = iota
	KindUpgrade
)

func (k ConnKind) String() string {
	if k == KindUpgrade {
		return "upgrade"
	}
	return "content"
}

// Classify reports whether r asks to be upgraded to a WebSocket.
func Classify(r *http.Request) ConnKind {
	if websocket.IsWebSocketUpgrade(r) {
		return KindUpgrade
	}
	return KindContent
}

// Router sends upgrade requests to the session handler and everything else
// to the content handler, on the same listener.
type Router struct {
	upgrade http.Handler
	content http.Handler
}

func NewRouter(upgrade, content http.Handler) *Router {
	return &Router{upgrade: upgrade, content: content}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch Classify(r) {
	case KindUpgrade:
		rt.upgrade.ServeHTTP(w, r)
	default:
		rt.content.ServeHTTP(w, r)
	}
}
