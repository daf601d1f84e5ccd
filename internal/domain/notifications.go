package domain

import "time"

type NotificationType string

const (
	NotificationEntryLogged NotificationType = "entry_logged"
)

// EntryNotification is pushed to websocket clients, the gate topic and the broker.
type EntryNotification struct {
	Type      NotificationType `json:"type"`
	Entry     ParkingEntry     `json:"entry"`
	CaptureID string           `json:"capture_id,omitempty"`
	SentAt    time.Time        `json:"sent_at"`
}

// CaptureMessage is the SQS body produced by camera gateways.
type CaptureMessage struct {
	ImageBase64 string `json:"image_base64"`
	EntryType   string `json:"entry_type"`
	CameraID    string `json:"camera_id,omitempty"`
}
