// Package preprocess prepares captured frames for plate OCR.
//
// The pipeline is fixed: luminance, linear contrast/brightness around mid-grey,
// then a hard binary threshold. The output has the same bounds as the input and
// every pixel has R = G = B in {0, 255}; alpha is preserved.
package preprocess

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	Contrast   = 2.0
	Brightness = 20.0
	Threshold  = 128
)

// Preprocess returns a binarized copy of img. The input is not modified.
func Preprocess(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	return imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		v := Binarize(c.R)
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

// Binarize maps a luminance value through the contrast/brightness transform
// and the threshold.
func Binarize(y uint8) uint8 {
	v := (float64(y)-128)*Contrast + 128 + Brightness
	if v >= Threshold {
		return 255
	}
	return 0
}

// DecodeFrame decodes a PNG or JPEG capture.
func DecodeFrame(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// EncodePNG encodes img as PNG for engines that take bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBase64 accepts raw base64 or a data URL ("data:image/png;base64,...")
// as produced by canvas.toDataURL.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, fmt.Errorf("malformed data url")
		}
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	return data, nil
}
