package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/guregu/null.v4"
)

// TimestampLayout is the ISO-8601 form used in exports and the local store
// (millisecond precision, always rendered in UTC with a Z suffix).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type EntryType string

const (
	EntryTypeEntry EntryType = "Entry"
	EntryTypeExit  EntryType = "Exit"
)

var ErrInvalidEntryType = errors.New("invalid entry type")

// ParseEntryType accepts "Entry"/"Exit" in any case.
func ParseEntryType(s string) (EntryType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "entry":
		return EntryTypeEntry, nil
	case "exit":
		return EntryTypeExit, nil
	}
	return "", fmt.Errorf("%w %q (want Entry or Exit)", ErrInvalidEntryType, s)
}

func (t EntryType) Valid() bool {
	return t == EntryTypeEntry || t == EntryTypeExit
}

// ParkingEntry is one recorded gate event. Never mutated after insert.
type ParkingEntry struct {
	ID          string    `json:"id"`
	PlateNumber string    `json:"plate_number"`
	EntryType   EntryType `json:"entry_type"`
	Timestamp   time.Time `json:"timestamp"`
	CreatedAt   time.Time `json:"created_at"`

	Confidence null.Float  `json:"confidence"`
	RawText    null.String `json:"raw_text"`
	CameraID   null.String `json:"camera_id"`
	RecordedBy null.String `json:"recorded_by"`
}

// Key identifies the (plate, direction) pair used by the duplicate rule.
func (e ParkingEntry) Key() string {
	return e.PlateNumber + "|" + string(e.EntryType)
}

// CaptureRequestDTO is what the capture page (or a camera gateway) posts.
type CaptureRequestDTO struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
	EntryType   string `json:"entry_type" binding:"required"`
	CameraID    string `json:"camera_id,omitempty"`
}

// CaptureResultDTO is returned for both successful and preview captures.
type CaptureResultDTO struct {
	CaptureID     string        `json:"capture_id"`
	RawText       string        `json:"raw_text"`
	Confidence    float64       `json:"confidence"`
	DetectedPlate string        `json:"detected_plate"`
	Entry         *ParkingEntry `json:"entry,omitempty"`
}

// EntryFilterDTO binds dashboard query parameters.
type EntryFilterDTO struct {
	Search string `form:"search"`
	Type   string `form:"type"`
	Range  string `form:"range"`
}

// PreviewRequestDTO runs OCR on a frame without logging it.
type PreviewRequestDTO struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
}
