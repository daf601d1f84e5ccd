package ocr

import (
	"context"
	"errors"
	"image"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/rs/zerolog/log"

	"github.com/codecurser/park-vision-control-system/internal/preprocess"
)

// DetectTextAPI is the part of *rekognition.Client used here.
type DetectTextAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// RekognitionRecognizer sends the preprocessed frame to AWS Rekognition and
// keeps the highest-confidence LINE detection.
type RekognitionRecognizer struct {
	client DetectTextAPI
}

func NewRekognitionRecognizer(client DetectTextAPI) *RekognitionRecognizer {
	return &RekognitionRecognizer{client: client}
}

func (r *RekognitionRecognizer) Recognize(ctx context.Context, frame image.Image) (Recognition, error) {
	if r.client == nil {
		return Recognition{}, Failed(EngineRekognition, errors.New("client not initialised"))
	}

	imageBytes, err := preprocess.EncodePNG(frame)
	if err != nil {
		return Recognition{}, Failed(EngineRekognition, err)
	}

	result, err := r.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: imageBytes},
	})
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_REKOGNITION").Msg("DetectText failed")
		return Recognition{}, Failed(EngineRekognition, err)
	}

	var best Recognition
	for _, d := range result.TextDetections {
		if d.Type != types.TextTypesLine || d.DetectedText == nil || d.Confidence == nil {
			continue
		}
		text := keepCharset(strings.ToUpper(*d.DetectedText))
		conf := float64(*d.Confidence)
		if conf > best.Confidence {
			best = Recognition{Text: text, Confidence: ClampConfidence(conf)}
		}
	}

	log.Debug().Str("component", "OCR_REKOGNITION").
		Int("detections", len(result.TextDetections)).
		Str("text", best.Text).Float64("confidence", best.Confidence).
		Msg("detect text done")
	return best, nil
}

// keepCharset emulates the whitelist the local engine enforces natively.
func keepCharset(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(PlateCharset, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
