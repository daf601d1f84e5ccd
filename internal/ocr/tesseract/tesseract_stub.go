//go:build !(cgo && linux)

package tesseract

import (
	"context"
	"image"

	"github.com/codecurser/park-vision-control-system/internal/ocr"
)

type Recognizer struct{}

func New(language string) (*Recognizer, error) {
	return nil, ErrUnavailable
}

func (r *Recognizer) Close() error { return nil }

func (r *Recognizer) Recognize(ctx context.Context, frame image.Image) (ocr.Recognition, error) {
	return ocr.Recognition{}, ocr.Failed(ocr.EngineTesseract, ErrUnavailable)
}
