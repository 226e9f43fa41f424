package services

import (
	"context"
	"encoding/json"
	"fmt"

	"deskrelay/internal/core/domain"
	"deskrelay/internal/core/ports"
	apperrors "deskrelay/pkg/errors"

	"go.uber.org/zap"
)

// controlMessage is the JSON body of a text control message.
type controlMessage struct {
	Action string   `json:"action"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Button *string  `json:"button,omitempty"`
	Key    *string  `json:"key,omitempty"`
}

var keyTable = map[string]domain.KeyCode{
	"Enter":      domain.KeyEnter,
	"Backspace":  domain.KeyBackspace,
	"Tab":        domain.KeyTab,
	"Escape":     domain.KeyEscape,
	"ArrowUp":    domain.KeyUp,
	"ArrowDown":  domain.KeyDown,
	"ArrowLeft":  domain.KeyLeft,
	"ArrowRight": domain.KeyRight,
}

// Modifier keys arrive as separate events and are not forwarded.
var modifierKeys = map[string]struct{}{
	"Shift":   {},
	"Control": {},
	"Alt":     {},
}

const (
	ignoredMalformed = "malformed"
	ignoredAction    = "unknown_action"
	ignoredEmptyKey  = "empty_key"
	ignoredModifier  = "modifier"
)

type InputService struct {
	injector ports.Injector
	scale    float64
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger
}

// NewInputService maps viewer coordinates to device coordinates by
// multiplying with downscale*deviceScale.
func NewInputService(
	injector ports.Injector,
	downscale int,
	deviceScale float64,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *InputService {
	if downscale < 1 {
		downscale = 1
	}
	if deviceScale <= 0 {
		deviceScale = 1
	}
	return &InputService{
		injector: injector,
		scale:    float64(downscale) * deviceScale,
		metrics:  metrics,
		logger:   logger,
	}
}

// Decode parses one control message. ok is false for well-formed messages
// that carry nothing to inject.
func (s *InputService) Decode(payload []byte) (event domain.ControlEvent, ok bool, err error) {
	var msg controlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.metrics.RecordControlIgnored(ignoredMalformed)
		return event, false, apperrors.NewMalformedControlError("invalid control message", err)
	}

	switch msg.Action {
	case "click":
		event.Kind = domain.EventPointerClick
		if msg.X != nil {
			event.X = int(*msg.X * s.scale)
		}
		if msg.Y != nil {
			event.Y = int(*msg.Y * s.scale)
		}
		event.Button = domain.ButtonLeft
		if msg.Button != nil && *msg.Button == string(domain.ButtonRight) {
			event.Button = domain.ButtonRight
		}
		return event, true, nil

	case "key":
		if msg.Key == nil || *msg.Key == "" {
			s.metrics.RecordControlIgnored(ignoredEmptyKey)
			return event, false, nil
		}
		key := *msg.Key
		if _, modifier := modifierKeys[key]; modifier {
			s.metrics.RecordControlIgnored(ignoredModifier)
			return event, false, nil
		}
		event.Kind = domain.EventKey
		if code, mapped := keyTable[key]; mapped {
			event.Key = code
		} else {
			event.Text = key
		}
		return event, true, nil

	default:
		s.metrics.RecordControlIgnored(ignoredAction)
		return event, false, nil
	}
}

// Dispatch injects one event. A click is a move followed by a click.
func (s *InputService) Dispatch(event domain.ControlEvent) error {
	var err error
	switch event.Kind {
	case domain.EventPointerMove:
		err = s.injector.MoveTo(event.X, event.Y)
	case domain.EventPointerClick:
		if err = s.injector.MoveTo(event.X, event.Y); err == nil {
			err = s.injector.Click(event.Button)
		}
	case domain.EventKey:
		if event.Key != "" {
			err = s.injector.KeyTap(event.Key)
		} else {
			err = s.injector.TypeText(event.Text)
		}
	default:
		return fmt.Errorf("unsupported event kind %d", event.Kind)
	}

	s.metrics.RecordControlEvent(event.Kind)
	if err != nil {
		s.metrics.RecordInjectionError()
		return apperrors.WrapError(err, apperrors.ErrCodeInjectionFailed, "input injection failed")
	}
	return nil
}

// HandleMessage decodes and injects a text control message. Errors are
// logged and returned; callers keep the session open either way.
func (s *InputService) HandleMessage(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event, ok, err := s.Decode(payload)
	if err != nil {
		s.logger.Debugw("Ignoring control message", "error", err, "bytes", len(payload))
		return err
	}
	if !ok {
		return nil
	}

	if err := s.Dispatch(event); err != nil {
		s.logger.Warnw("Input injection failed",
			"kind", event.Kind.String(),
			"error", err,
		)
		return err
	}
	return nil
}
