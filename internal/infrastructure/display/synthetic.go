package display

import (
	"context"
	"image"
	"sync"

	"deskrelay/internal/core/domain"
)

// rowPadding mimics drivers that pad each row past width*4.
const rowPadding = 64

// SyntheticCapturer produces a moving test pattern. It stands in for a real
// display on headless machines and in tests.
type SyntheticCapturer struct {
	width, height int
	scale         float64

	mu    sync.Mutex
	frame int
}

func NewSyntheticCapturer(width, height int) *SyntheticCapturer {
	return &SyntheticCapturer{width: width, height: height, scale: 1}
}

func (c *SyntheticCapturer) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.width, c.height)
}

func (c *SyntheticCapturer) ScaleFactor() float64 {
	return c.scale
}

// Frames returns how many frames have been produced.
func (c *SyntheticCapturer) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Capture draws diagonal colour bands shifted by the frame counter, with a
// solid bar sweeping down the screen.
func (c *SyntheticCapturer) Capture(ctx context.Context) (*domain.RawFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	n := c.frame
	c.frame++
	c.mu.Unlock()

	pitch := c.width*4 + rowPadding
	pix := make([]byte, pitch*c.height)
	bar := 0
	if c.height > 0 {
		bar = (n * 4) % c.height
	}

	for y := 0; y < c.height; y++ {
		row := pix[y*pitch:]
		for x := 0; x < c.width; x++ {
			o := x * 4
			if y >= bar && y < bar+8 {
				row[o], row[o+1], row[o+2] = 255, 255, 255
			} else {
				row[o] = byte(x + n)
				row[o+1] = byte(y + n)
				row[o+2] = byte(x + y)
			}
			row[o+3] = 255
		}
	}

	return &domain.RawFrame{
		Pix:    pix,
		Width:  c.width,
		Height: c.height,
		Pitch:  pitch,
		Format: domain.PixelFormatRGBA,
	}, nil
}
