package imaging

import (
	"bytes"
	"image/jpeg"
	"testing"

	"deskrelay/internal/core/domain"
	apperrors "deskrelay/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paddedFrame builds a width x height frame whose pixel (x, y) holds
// (x, y, x+y, 255) and whose rows carry pad junk bytes after the pixels.
func paddedFrame(width, height, pad int) []byte {
	pitch := width*4 + pad
	pix := make([]byte, pitch*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			o := y*pitch + x*4
			pix[o] = byte(x)
			pix[o+1] = byte(y)
			pix[o+2] = byte(x + y)
			pix[o+3] = 255
		}
		for p := 0; p < pad; p++ {
			pix[y*pitch+width*4+p] = 0xEE
		}
	}
	return pix
}

func TestRepack_StripsPadding(t *testing.T) {
	src := paddedFrame(3, 2, 8)

	out := Repack(nil, src, 3, 2, 3*4+8)

	require.Len(t, out, 3*2*4)
	assert.NotContains(t, out, byte(0xEE))
	assert.Equal(t, []byte{2, 1, 3, 255}, out[(1*3+2)*4:(1*3+3)*4])
}

func TestRepack_TightIsCopied(t *testing.T) {
	src := paddedFrame(2, 2, 0)

	out := Repack(make([]byte, 0, 64), src, 2, 2, 8)

	assert.Equal(t, src, out)
	out[0] = 99
	assert.NotEqual(t, byte(99), src[0])
}

func TestRepack_ShortSourceSkipsRows(t *testing.T) {
	src := paddedFrame(2, 3, 4)
	pitch := 2*4 + 4
	truncated := src[:pitch*2]

	dirty := bytes.Repeat([]byte{0x55}, 2*3*4)
	out := Repack(dirty, truncated, 2, 3, pitch)

	require.Len(t, out, 2*3*4)
	assert.Equal(t, src[:8], out[:8])
	assert.Equal(t, make([]byte, 8), out[16:24])
}

func TestSwizzleBGRA(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	SwizzleBGRA(pix)
	assert.Equal(t, []byte{3, 2, 1, 4, 7, 6, 5, 8}, pix)
}

func TestDownscaleRGB_PicksEveryKthPixel(t *testing.T) {
	const w, h = 6, 4
	tight := Repack(nil, paddedFrame(w, h, 0), w, h, w*4)

	out, ow, oh := DownscaleRGB(nil, tight, w, h, 2)

	assert.Equal(t, 3, ow)
	assert.Equal(t, 2, oh)
	require.Len(t, out, 3*2*3)
	for y := 0; y < oh; y++ {
		for x := 0; x < ow; x++ {
			i := (y*ow + x) * 3
			assert.Equal(t, []byte{byte(2 * x), byte(2 * y), byte(2*x + 2*y)}, out[i:i+3], "pixel %d,%d", x, y)
		}
	}
}

func TestDownscaleRGB_OddDimensionsTruncate(t *testing.T) {
	tight := Repack(nil, paddedFrame(5, 3, 0), 5, 3, 20)
	out, ow, oh := DownscaleRGB(nil, tight, 5, 3, 2)
	assert.Equal(t, 2, ow)
	assert.Equal(t, 1, oh)
	assert.Len(t, out, 2*1*3)
}

func TestYCbCrFromRGB_Gray(t *testing.T) {
	rgb := []byte{128, 128, 128, 128, 128, 128}
	img := YCbCrFromRGB(rgb, 2, 1)
	assert.Equal(t, uint8(128), img.Y[0])
	assert.Equal(t, uint8(128), img.Cb[1])
	assert.Equal(t, uint8(128), img.Cr[1])
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterNearest, f)

	f, err = ParseFilter("lanczos")
	require.NoError(t, err)
	assert.Equal(t, FilterLanczos, f)

	_, err = ParseFilter("bicubic")
	assert.Error(t, err)
}

func TestJPEGEncoder_Encode(t *testing.T) {
	tests := []struct {
		name      string
		downscale int
		filter    Filter
		format    domain.PixelFormat
		wantW     int
		wantH     int
	}{
		{name: "full size", downscale: 1, filter: FilterNearest, format: domain.PixelFormatRGBA, wantW: 64, wantH: 48},
		{name: "nearest half", downscale: 2, filter: FilterNearest, format: domain.PixelFormatBGRA, wantW: 32, wantH: 24},
		{name: "lanczos half", downscale: 2, filter: FilterLanczos, format: domain.PixelFormatRGBA, wantW: 32, wantH: 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewJPEGEncoder(70, tt.downscale, tt.filter)
			frame := &domain.RawFrame{
				Pix:    paddedFrame(64, 48, 16),
				Width:  64,
				Height: 48,
				Pitch:  64*4 + 16,
				Format: tt.format,
			}

			data, w, h, err := enc.Encode(frame)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			require.True(t, len(data) > 4)
			assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])

			cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, cfg.Width)
			assert.Equal(t, tt.wantH, cfg.Height)

			// encoding twice must not leak pooled state between frames
			again, _, _, err := enc.Encode(frame)
			require.NoError(t, err)
			assert.Equal(t, data, again)
		})
	}
}

func TestJPEGEncoder_RejectsBadFrames(t *testing.T) {
	enc := NewJPEGEncoder(70, 2, FilterNearest)

	_, _, _, err := enc.Encode(&domain.RawFrame{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeEncodeFailed))

	_, _, _, err = enc.Encode(&domain.RawFrame{Pix: make([]byte, 4), Width: 1, Height: 1, Pitch: 4})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeEncodeFailed))
}
