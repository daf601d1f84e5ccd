//go:build !(cgo && linux)

package tesseract

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codecurser/park-vision-control-system/internal/ocr"
)

func TestStub(t *testing.T) {
	r, err := New("eng")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, r)

	var stub Recognizer
	_, err = stub.Recognize(context.Background(), image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, ocr.ErrOCRFailed)
	assert.NoError(t, stub.Close())
}
