package service

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/preprocess"
)

var errStoreDown = errors.New("connection refused")

// memStore is an in-memory EntryStore with switchable failures.
type memStore struct {
	mu         sync.Mutex
	entries    []domain.ParkingEntry
	failInsert bool
	failList   bool
	failExists bool
}

func (m *memStore) Insert(_ context.Context, e *domain.ParkingEntry) (*domain.ParkingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return nil, errStoreDown
	}
	created := *e
	created.ID = uuid.NewString()
	created.CreatedAt = created.Timestamp
	m.entries = append([]domain.ParkingEntry{created}, m.entries...)
	return &created, nil
}

func (m *memStore) ListAll(context.Context) ([]domain.ParkingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, errStoreDown
	}
	out := make([]domain.ParkingEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *memStore) ExistsRecent(_ context.Context, plate string, t domain.EntryType, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failExists {
		return false, errStoreDown
	}
	for _, e := range m.entries {
		if e.PlateNumber == plate && e.EntryType == t && !e.Timestamp.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type recordingNotifier struct {
	mu   sync.Mutex
	got  []domain.EntryNotification
	fail bool
}

func (r *recordingNotifier) NotifyEntry(_ context.Context, n domain.EntryNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	if r.fail {
		return errors.New("broker unreachable")
	}
	return nil
}

func testFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	data, err := preprocess.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}
