package display

import (
	"context"
	"fmt"
	"image"

	"deskrelay/internal/core/domain"

	"github.com/kbinani/screenshot"
)

// ScreenCapturer grabs one active display through the OS screenshot API.
type ScreenCapturer struct {
	index  int
	bounds image.Rectangle
	scale  float64
}

// NewScreenCapturer selects display index. It fails with domain.ErrNoDisplay
// when no display is attached or the index is out of range.
func NewScreenCapturer(index int) (*ScreenCapturer, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, domain.ErrNoDisplay
	}
	if index < 0 || index >= n {
		return nil, fmt.Errorf("%w: display %d requested, %d active", domain.ErrNoDisplay, index, n)
	}

	return &ScreenCapturer{
		index:  index,
		bounds: screenshot.GetDisplayBounds(index),
		scale:  1,
	}, nil
}

// Screens lists the bounds of every active display.
func Screens() []image.Rectangle {
	n := screenshot.NumActiveDisplays()
	screens := make([]image.Rectangle, n)
	for i := 0; i < n; i++ {
		screens[i] = screenshot.GetDisplayBounds(i)
	}
	return screens
}

func (c *ScreenCapturer) Bounds() image.Rectangle {
	return c.bounds
}

// ScaleFactor is 1: screenshot reports bounds in physical pixels, which is
// also the space the injector moves in. Callers with a HiDPI injector
// override it through input.device_scale.
func (c *ScreenCapturer) ScaleFactor() float64 {
	return c.scale
}

func (c *ScreenCapturer) Capture(ctx context.Context) (*domain.RawFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := screenshot.CaptureRect(c.bounds)
	if err != nil {
		return nil, fmt.Errorf("capture display %d: %w: %w", c.index, domain.ErrCaptureUnavailable, err)
	}
	return fromRGBA(img), nil
}

func fromRGBA(img *image.RGBA) *domain.RawFrame {
	b := img.Bounds()
	return &domain.RawFrame{
		Pix:    img.Pix,
		Width:  b.Dx(),
		Height: b.Dy(),
		Pitch:  img.Stride,
		Format: domain.PixelFormatRGBA,
	}
}
