package imaging

import (
	"image"
	"image/color"

	"deskrelay/pkg/optimize"
)

// Repack copies a padded 4-byte-per-pixel buffer into dst as a tight
// width*height*4 buffer. Rows whose source range runs past the end of src are
// left zeroed. dst is grown as needed and returned.
func Repack(dst, src []byte, width, height, pitch int) []byte {
	rowBytes := width * 4
	if pitch < rowBytes {
		pitch = rowBytes
	}
	dst = optimize.GrowSlice(dst[:0], rowBytes*height)

	if pitch == rowBytes && len(src) >= len(dst) {
		copy(dst, src)
		return dst
	}

	for y := 0; y < height; y++ {
		out := dst[y*rowBytes : (y+1)*rowBytes]
		off := y * pitch
		if off+rowBytes > len(src) {
			clear(out)
			continue
		}
		copy(out, src[off:off+rowBytes])
	}
	return dst
}

// SwizzleBGRA swaps the red and blue channels of a tight 4-byte buffer in
// place.
func SwizzleBGRA(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

// DownscaleRGB samples every k-th pixel of a tight RGBA buffer and drops the
// alpha channel. Output pixel (x, y) is source pixel (k*x, k*y).
func DownscaleRGB(dst, src []byte, width, height, k int) ([]byte, int, int) {
	if k < 1 {
		k = 1
	}
	outW, outH := width/k, height/k
	dst = optimize.GrowSlice(dst[:0], outW*outH*3)

	srcRow := width * 4
	i := 0
	for y := 0; y < outH; y++ {
		row := src[y*k*srcRow:]
		for x := 0; x < outW; x++ {
			p := row[x*k*4:]
			dst[i] = p[0]
			dst[i+1] = p[1]
			dst[i+2] = p[2]
			i += 3
		}
	}
	return dst, outW, outH
}

// YCbCrFromRGB converts a tight RGB buffer to a 4:4:4 YCbCr image, which the
// JPEG encoder consumes without a per-pixel interface conversion.
func YCbCrFromRGB(rgb []byte, width, height int) *image.YCbCr {
	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio444)
	i := 0
	for y := 0; y < height; y++ {
		yRow := y * img.YStride
		cRow := y * img.CStride
		for x := 0; x < width; x++ {
			yy, cb, cr := color.RGBToYCbCr(rgb[i], rgb[i+1], rgb[i+2])
			img.Y[yRow+x] = yy
			img.Cb[cRow+x] = cb
			img.Cr[cRow+x] = cr
			i += 3
		}
	}
	return img
}

// RGBAView wraps a tight RGBA buffer without copying.
func RGBAView(pix []byte, width, height int) *image.RGBA {
	return &image.RGBA{
		Pix:    pix,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
}
