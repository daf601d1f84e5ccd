// Package ocr defines the text recognition contract used by the plate pipeline
// and the engines that satisfy it.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

// PlateCharset is the only character set engines are allowed to emit.
const PlateCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var ErrOCRFailed = errors.New("OCR Processing Failed")

// Recognition is the raw engine output. Confidence is in [0,100].
type Recognition struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type TextRecognizer interface {
	Recognize(ctx context.Context, frame image.Image) (Recognition, error)
}

// Func adapts a plain function to TextRecognizer.
type Func func(ctx context.Context, frame image.Image) (Recognition, error)

func (f Func) Recognize(ctx context.Context, frame image.Image) (Recognition, error) {
	return f(ctx, frame)
}

type EngineType string

const (
	EngineTesseract   EngineType = "tesseract"
	EngineRekognition EngineType = "rekognition"
)

func ParseEngineType(s string) (EngineType, error) {
	switch EngineType(strings.ToLower(strings.TrimSpace(s))) {
	case EngineTesseract:
		return EngineTesseract, nil
	case EngineRekognition:
		return EngineRekognition, nil
	}
	return "", fmt.Errorf("unknown OCR engine %q", s)
}

// Failed wraps an engine error so callers can match ErrOCRFailed.
func Failed(engine EngineType, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrOCRFailed, engine, err)
}

// ClampConfidence keeps engine scores inside [0,100].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}
