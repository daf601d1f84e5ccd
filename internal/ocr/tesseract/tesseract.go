//go:build cgo && linux

package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"

	"github.com/codecurser/park-vision-control-system/internal/ocr"
	"github.com/codecurser/park-vision-control-system/internal/preprocess"
)

type Recognizer struct {
	mu     deadlock.Mutex
	client *gosseract.Client
}

// New configures a client for single-word plate reads.
func New(language string) (*Recognizer, error) {
	if language == "" {
		language = "eng"
	}
	client := gosseract.NewClient()

	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetWhitelist(ocr.PlateCharset); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_WORD); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}

	disableDictionaries(client)

	return &Recognizer{client: client}, nil
}

type variableSetter interface {
	SetVariable(key gosseract.SettableVariable, value string) error
}

// disableDictionaries turns off word lists, since plates are not dictionary
// words. Failures only cost accuracy, so they are logged and ignored.
func disableDictionaries(c variableSetter) {
	for _, name := range []gosseract.SettableVariable{"load_system_dawg", "load_freq_dawg"} {
		if err := c.SetVariable(name, "false"); err != nil {
			log.Warn().Err(err).Str("component", "OCR_TESSERACT").Str("variable", string(name)).Msg("could not disable dictionary")
		}
	}
}

func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		err := r.client.Close()
		r.client = nil
		return err
	}
	return nil
}

func (r *Recognizer) Recognize(ctx context.Context, frame image.Image) (ocr.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Recognition{}, ocr.Failed(ocr.EngineTesseract, err)
	}

	buf, err := preprocess.EncodePNG(frame)
	if err != nil {
		return ocr.Recognition{}, ocr.Failed(ocr.EngineTesseract, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return ocr.Recognition{}, ocr.Failed(ocr.EngineTesseract, ErrClosed)
	}

	if err := r.client.SetImageFromBytes(buf); err != nil {
		return ocr.Recognition{}, ocr.Failed(ocr.EngineTesseract, err)
	}

	text, err := r.client.Text()
	if err != nil {
		return ocr.Recognition{}, ocr.Failed(ocr.EngineTesseract, err)
	}
	text = strings.Join(strings.Fields(text), "")

	var confidence float64
	boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		log.Warn().Err(err).Str("component", "OCR_TESSERACT").Msg("word boxes unavailable, confidence set to 0")
	} else {
		confidence = meanConfidence(boxes)
	}

	log.Debug().Str("component", "OCR_TESSERACT").
		Str("text", text).Float64("confidence", confidence).Msg("recognized")
	return ocr.Recognition{Text: text, Confidence: ocr.ClampConfidence(confidence)}, nil
}

func meanConfidence(boxes []gosseract.BoundingBox) float64 {
	var sum float64
	var n int
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		sum += b.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
