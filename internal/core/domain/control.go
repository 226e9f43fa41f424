package domain

type EventKind int

const (
	EventPointerMove EventKind = iota
	EventPointerClick
	EventKey
)

func (k EventKind) String() string {
	switch k {
	case EventPointerMove:
		return "pointer_move"
	case EventPointerClick:
		return "pointer_click"
	case EventKey:
		return "key"
	default:
		return "unknown"
	}
}

type MouseButton string

const (
	ButtonLeft  MouseButton = "left"
	ButtonRight MouseButton = "right"
)

// KeyCode names a key in the injector's vocabulary.
type KeyCode string

const (
	KeyEnter     KeyCode = "enter"
	KeyBackspace KeyCode = "backspace"
	KeyTab       KeyCode = "tab"
	KeyEscape    KeyCode = "esc"
	KeyUp        KeyCode = "up"
	KeyDown      KeyCode = "down"
	KeyLeft      KeyCode = "left"
	KeyRight     KeyCode = "right"
)

// ControlEvent is one decoded input action in device coordinates.
// A key event carries either Key (a mapped key) or Text (typed literally).
type ControlEvent struct {
	Kind   EventKind
	X, Y   int
	Button MouseButton
	Key    KeyCode
	Text   string
}
