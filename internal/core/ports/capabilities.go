package ports

import (
	"context"
	"image"

	"deskrelay/internal/core/domain"
)

// DisplayCapturer grabs frames from one display.
type DisplayCapturer interface {
	Bounds() image.Rectangle
	// ScaleFactor is the ratio between physical and logical pixels.
	ScaleFactor() float64
	// Capture returns domain.ErrCaptureUnavailable (possibly wrapped) when no
	// frame is ready yet.
	Capture(ctx context.Context) (*domain.RawFrame, error)
}

// Injector drives the local pointer and keyboard.
type Injector interface {
	MoveTo(x, y int) error
	Click(button domain.MouseButton) error
	KeyTap(key domain.KeyCode) error
	TypeText(text string) error
}

// FrameEncoder turns a raw frame into a compressed payload and reports the
// dimensions of the encoded image.
type FrameEncoder interface {
	Encode(frame *domain.RawFrame) (data []byte, width, height int, err error)
}

// FrameSink receives encoded frames and returns the sequence number assigned.
type FrameSink interface {
	Publish(frame domain.EncodedFrame) uint64
}
