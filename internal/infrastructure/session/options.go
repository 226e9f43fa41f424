package session

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"deskrelay/pkg/config"

	"github.com/gorilla/websocket"
)

type Options struct {
	// PingInterval of zero disables keepalive pings and read deadlines.
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	// AllowedOrigins restricts browser origins; empty allows any origin.
	AllowedOrigins []string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PingInterval:    cfg.Session.PingInterval,
		PongTimeout:     cfg.Session.PongTimeout,
		WriteTimeout:    cfg.Session.WriteTimeout,
		MaxMessageBytes: cfg.Session.MaxMessageBytes,
		AllowedOrigins:  cfg.Session.AllowedOrigins,
	}
}

func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

func newUpgrader(opts Options) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(opts.AllowedOrigins))
	anyOrigin := len(opts.AllowedOrigins) == 0
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			anyOrigin = true
		}
		allowed[strings.ToLower(o)] = struct{}{}
	}

	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			if anyOrigin {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients such as the agent
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			_, ok := allowed[strings.ToLower(u.Host)]
			return ok
		},
	}
}
