package domain

import "time"

type PixelFormat int

const (
	PixelFormatRGBA PixelFormat = iota
	PixelFormatBGRA
)

// RawFrame is a captured 4-byte-per-pixel buffer. Pitch is the number of
// bytes per source row and may exceed Width*4 when the driver pads rows.
type RawFrame struct {
	Pix    []byte
	Width  int
	Height int
	Pitch  int
	Format PixelFormat
}

// RowPitch returns Pitch, deriving it from the buffer length when unset.
func (f *RawFrame) RowPitch() int {
	if f.Pitch > 0 {
		return f.Pitch
	}
	if f.Height > 0 {
		return len(f.Pix) / f.Height
	}
	return 0
}

// EncodedFrame is a compressed frame as carried by the frame bus. Seq is
// assigned on publish and increases by one per published frame.
type EncodedFrame struct {
	Seq        uint64
	Data       []byte
	Width      int
	Height     int
	CapturedAt time.Time
}
