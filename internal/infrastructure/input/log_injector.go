package input

import (
	"sync"

	"deskrelay/internal/core/domain"

	"go.uber.org/zap"
)

// Action is one call received by a LogInjector.
type Action struct {
	Op     string
	X, Y   int
	Button domain.MouseButton
	Key    domain.KeyCode
	Text   string
}

// LogInjector logs every injection instead of touching the OS. It keeps the
// most recent actions so a dry run can be inspected.
type LogInjector struct {
	logger *zap.SugaredLogger
	keep   int

	mu      sync.Mutex
	actions []Action
}

func NewLogInjector(logger *zap.SugaredLogger, keep int) *LogInjector {
	if keep < 0 {
		keep = 0
	}
	return &LogInjector{logger: logger, keep: keep}
}

func (l *LogInjector) MoveTo(x, y int) error {
	l.logger.Infow("Pointer move", "x", x, "y", y)
	l.record(Action{Op: "move", X: x, Y: y})
	return nil
}

func (l *LogInjector) Click(button domain.MouseButton) error {
	l.logger.Infow("Pointer click", "button", button)
	l.record(Action{Op: "click", Button: button})
	return nil
}

func (l *LogInjector) KeyTap(key domain.KeyCode) error {
	l.logger.Infow("Key tap", "key", key)
	l.record(Action{Op: "key", Key: key})
	return nil
}

func (l *LogInjector) TypeText(text string) error {
	l.logger.Infow("Type text", "length", len(text))
	l.record(Action{Op: "type", Text: text})
	return nil
}

// Actions returns the retained actions, oldest first.
func (l *LogInjector) Actions() []Action {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Action(nil), l.actions...)
}

func (l *LogInjector) record(a Action) {
	if l.keep == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.actions) == l.keep {
		copy(l.actions, l.actions[1:])
		l.actions = l.actions[:l.keep-1]
	}
	l.actions = append(l.actions, a)
}
