package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"deskrelay/internal/core/domain"
	apperrors "deskrelay/pkg/errors"
	"deskrelay/pkg/optimize"

	"github.com/nfnt/resize"
)

type Filter string

const (
	FilterNearest Filter = "nearest"
	FilterLanczos Filter = "lanczos"
)

func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case FilterNearest, "":
		return FilterNearest, nil
	case FilterLanczos:
		return FilterLanczos, nil
	default:
		return "", fmt.Errorf("unknown filter %q", s)
	}
}

// JPEGEncoder implements ports.FrameEncoder. It is safe for concurrent use.
type JPEGEncoder struct {
	quality   int
	downscale int
	filter    Filter

	pixels  *optimize.BytePool
	buffers sync.Pool
}

func NewJPEGEncoder(quality, downscale int, filter Filter) *JPEGEncoder {
	if downscale < 1 {
		downscale = 1
	}
	return &JPEGEncoder{
		quality:   quality,
		downscale: downscale,
		filter:    filter,
		// 4K RGBA is ~33 MB; keep anything up to that
		pixels: optimize.NewBytePool(3840 * 2160 * 4),
		buffers: sync.Pool{New: func() any {
			return new(bytes.Buffer)
		}},
	}
}

func (e *JPEGEncoder) Encode(frame *domain.RawFrame) ([]byte, int, int, error) {
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil, 0, 0, apperrors.NewEncodeFailedError(fmt.Errorf("empty frame"))
	}
	if frame.Width < e.downscale || frame.Height < e.downscale {
		return nil, 0, 0, apperrors.NewEncodeFailedError(
			fmt.Errorf("frame %dx%d smaller than downscale factor %d", frame.Width, frame.Height, e.downscale))
	}

	tight := Repack(e.pixels.Get(0), frame.Pix, frame.Width, frame.Height, frame.RowPitch())
	defer e.pixels.Put(tight)
	if frame.Format == domain.PixelFormatBGRA {
		SwizzleBGRA(tight)
	}

	var img image.Image
	switch {
	case e.downscale == 1:
		img = RGBAView(tight, frame.Width, frame.Height)
	case e.filter == FilterLanczos:
		w, h := frame.Width/e.downscale, frame.Height/e.downscale
		img = resize.Resize(uint(w), uint(h), RGBAView(tight, frame.Width, frame.Height), resize.Lanczos3)
	default:
		rgb, w, h := DownscaleRGB(e.pixels.Get(0), tight, frame.Width, frame.Height, e.downscale)
		img = YCbCrFromRGB(rgb, w, h)
		e.pixels.Put(rgb)
	}

	buf := e.buffers.Get().(*bytes.Buffer)
	buf.Reset()
	defer e.buffers.Put(buf)

	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, 0, 0, apperrors.NewEncodeFailedError(err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	bounds := img.Bounds()
	return out, bounds.Dx(), bounds.Dy(), nil
}
