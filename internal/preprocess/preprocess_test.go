package preprocess

import (
	"encoding/base64"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestBinarize(t *testing.T) {
	tests := []struct {
		name string
		in   uint8
		want uint8
	}{
		{"black", 0, 0},
		{"white", 255, 255},
		{"mid grey", 100, 0},
		{"just below cut", 117, 0},
		{"cut point", 118, 255},
		{"light grey", 200, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Binarize(tt.in))
		})
	}
}

func TestPreprocess_KeepsBoundsAndBinarizes(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	src.SetNRGBA(2, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255}) // luminance ~76
	src.SetNRGBA(3, 0, color.NRGBA{R: 0, G: 255, B: 0, A: 255}) // luminance ~150
	src.SetNRGBA(0, 1, color.NRGBA{R: 200, G: 200, B: 200, A: 128})

	out := Preprocess(src)
	require.Equal(t, src.Bounds().Dx(), out.Bounds().Dx())
	require.Equal(t, src.Bounds().Dy(), out.Bounds().Dy())

	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			c := out.NRGBAAt(x, y)
			assert.Equal(t, c.R, c.G, "pixel %d,%d", x, y)
			assert.Equal(t, c.R, c.B, "pixel %d,%d", x, y)
			assert.Contains(t, []uint8{0, 255}, c.R, "pixel %d,%d", x, y)
		}
	}
	assert.Equal(t, uint8(255), out.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(0), out.NRGBAAt(1, 0).R)
	assert.Equal(t, uint8(0), out.NRGBAAt(2, 0).R)
	assert.Equal(t, uint8(255), out.NRGBAAt(3, 0).R)
	assert.Equal(t, uint8(128), out.NRGBAAt(0, 1).A)
}

func TestPreprocess_DoesNotModifyInput(t *testing.T) {
	src := solid(3, 3, color.NRGBA{R: 90, G: 120, B: 60, A: 255})
	before := append([]uint8(nil), src.Pix...)

	_ = Preprocess(src)

	assert.Equal(t, before, src.Pix)
}

func TestDecodeFrame_RoundTrip(t *testing.T) {
	src := solid(5, 4, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	data, err := EncodePNG(src)
	require.NoError(t, err)

	img, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())
}

func TestDecodeFrame_Errors(t *testing.T) {
	_, err := DecodeFrame(nil)
	assert.Error(t, err)

	_, err = DecodeFrame([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestDecodeBase64(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	raw := base64.StdEncoding.EncodeToString(payload)

	got, err := DecodeBase64(raw)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	got, err = DecodeBase64("data:image/png;base64," + raw)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = DecodeBase64("data:image/png;base64")
	assert.Error(t, err)
	_, err = DecodeBase64("%%%")
	assert.Error(t, err)
	_, err = DecodeBase64("")
	assert.Error(t, err)
}
