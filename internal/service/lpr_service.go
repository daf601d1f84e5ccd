package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"

	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/metrics"
	"github.com/codecurser/park-vision-control-system/internal/ocr"
	"github.com/codecurser/park-vision-control-system/internal/plate"
	"github.com/codecurser/park-vision-control-system/internal/preprocess"
	"github.com/codecurser/park-vision-control-system/internal/repository"
)

var (
	ErrCaptureInFlight = errors.New("a capture is already being processed")
	ErrInvalidFrame    = errors.New("invalid image frame")
)

// CaptureInput is one frame submitted for logging.
type CaptureInput struct {
	Frame      []byte
	EntryType  domain.EntryType
	CameraID   string
	RecordedBy string
}

// LPRService runs decode -> preprocess -> OCR -> normalize -> log.
// Only one capture runs at a time; a second one fails with ErrCaptureInFlight.
type LPRService struct {
	recognizer ocr.TextRecognizer
	policy     plate.Policy
	entries    *EntryService
	metrics    *metrics.Metrics
	slot       chan struct{}
}

func NewLPRService(recognizer ocr.TextRecognizer, policy plate.Policy, entries *EntryService, m *metrics.Metrics) *LPRService {
	return &LPRService{
		recognizer: recognizer,
		policy:     policy,
		entries:    entries,
		metrics:    m,
		slot:       make(chan struct{}, 1),
	}
}

func (s *LPRService) acquire() bool {
	select {
	case s.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *LPRService) release() { <-s.slot }

// Capture logs the plate read from in.Frame. The returned result carries the
// OCR output even when err is a validation or duplicate error.
func (s *LPRService) Capture(ctx context.Context, in CaptureInput) (*domain.CaptureResultDTO, error) {
	if !in.EntryType.Valid() {
		s.metrics.CaptureResult(metrics.ResultBadInput)
		return nil, fmt.Errorf("LPRService.Capture: %w", domain.ErrInvalidEntryType)
	}
	if !s.acquire() {
		s.metrics.CaptureResult(metrics.ResultBusy)
		return nil, ErrCaptureInFlight
	}
	defer s.release()

	result, err := s.read(ctx, in.Frame)
	if err != nil {
		return result, err
	}

	entry, err := s.entries.Record(ctx, NewEntry{
		Plate:      result.DetectedPlate,
		EntryType:  in.EntryType,
		Confidence: result.Confidence,
		RawText:    result.RawText,
		CameraID:   in.CameraID,
		RecordedBy: in.RecordedBy,
		CaptureID:  result.CaptureID,
	})
	if err != nil {
		s.metrics.CaptureResult(resultLabel(err))
		log.Warn().Err(err).Str("component", "LPR").
			Str("capture_id", result.CaptureID).
			Str("plate", result.DetectedPlate).
			Msg("capture not logged")
		return result, err
	}
	s.metrics.CaptureResult(metrics.ResultLogged)
	result.Entry = entry
	return result, nil
}

// Preview runs OCR and normalization without touching the log.
func (s *LPRService) Preview(ctx context.Context, frame []byte) (*domain.CaptureResultDTO, error) {
	if !s.acquire() {
		s.metrics.CaptureResult(metrics.ResultBusy)
		return nil, ErrCaptureInFlight
	}
	defer s.release()

	result, err := s.read(ctx, frame)
	if err != nil {
		return result, err
	}
	s.metrics.CaptureResult(metrics.ResultPreview)
	return result, nil
}

func (s *LPRService) read(ctx context.Context, frame []byte) (*domain.CaptureResultDTO, error) {
	captureID := ksuid.New().String()
	logger := log.With().Str("component", "LPR").Str("capture_id", captureID).Logger()

	img, err := preprocess.DecodeFrame(frame)
	if err != nil {
		s.metrics.CaptureResult(metrics.ResultBadInput)
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	prepared := preprocess.Preprocess(img)

	start := time.Now()
	rec, err := s.recognizer.Recognize(ctx, prepared)
	s.metrics.OCRDuration(time.Since(start))
	if err != nil {
		s.metrics.CaptureResult(metrics.ResultOCRFailed)
		logger.Error().Err(err).Msg("OCR failed")
		if !errors.Is(err, ocr.ErrOCRFailed) {
			err = fmt.Errorf("%w: %v", ocr.ErrOCRFailed, err)
		}
		return nil, err
	}

	result := &domain.CaptureResultDTO{
		CaptureID:  captureID,
		RawText:    rec.Text,
		Confidence: rec.Confidence,
	}
	logger.Debug().Str("raw_text", rec.Text).Float64("confidence", rec.Confidence).Msg("OCR done")

	normalized, err := s.policy.Normalize(rec.Text, rec.Confidence)
	if err != nil {
		s.metrics.CaptureResult(metrics.ResultInvalid)
		logger.Info().Err(err).Str("raw_text", rec.Text).Msg("plate rejected")
		return result, err
	}
	result.DetectedPlate = normalized
	return result, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, repository.ErrDuplicateEntry):
		return metrics.ResultDuplicate
	case errors.Is(err, ErrStoreFailure):
		return metrics.ResultStoreFail
	case errors.Is(err, domain.ErrInvalidEntryType):
		return metrics.ResultBadInput
	}
	return metrics.ResultStoreFail
}
