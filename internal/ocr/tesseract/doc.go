// Package tesseract recognizes plate text locally with Tesseract through
// gosseract. The client is created once and reused; calls are serialized.
//
// Requires cgo on Linux, libtesseract and the language data for the
// configured language. Other builds get a stub whose New always fails, so a
// binary that only uses Rekognition builds without the native library.
package tesseract

import "errors"

var (
	ErrUnavailable = errors.New("tesseract support not compiled in (needs cgo on linux)")
	ErrClosed      = errors.New("recognizer closed")
)
