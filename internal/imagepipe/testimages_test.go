package imagepipe

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			row[i] = uint8(x * 255 / w)
			row[i+1] = uint8(y * 255 / h)
			row[i+2] = uint8((x + y) % 256)
			row[i+3] = 0xff
		}
	}
	return img
}

func noiseImage(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

// sizedJPEG encodes a w×h gradient whose top rows are replaced with noise,
// choosing the band height so the file lands near target bytes. Noise rows
// cost roughly the same per row, which makes one calibration pass enough.
func sizedJPEG(t *testing.T, w, h, quality, target int) []byte {
	t.Helper()
	const calibrationRows = 240

	base := len(encodeJPEG(t, gradientImage(w, h), quality))
	noisy := len(encodeJPEG(t, noiseImage(w, calibrationRows, 7), quality))

	perRow := float64(noisy)/calibrationRows - float64(base)/float64(h)
	rows := 0
	if perRow > 0 && target > base {
		rows = int(float64(target-base) / perRow)
	}
	rows = min(max(rows, 0), h)

	img := gradientImage(w, h)
	band := noiseImage(w, rows, 11)
	copy(img.Pix, band.Pix)
	return encodeJPEG(t, img, quality)
}

func transparentImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(0xff)
			if x < w/2 {
				a = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 40, B: 40, A: a})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func encodeGIF(t *testing.T, frames int, palette color.Palette) []byte {
	t.Helper()
	g := &gif.GIF{}
	for i := 0; i < frames; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, 32, 32), palette)
		for p := range frame.Pix {
			frame.Pix[p] = uint8((p + i) % len(palette))
		}
		g.Image = append(g.Image, frame)
		g.Delay = append(g.Delay, 10)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}
