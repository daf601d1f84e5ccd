package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
	"gopkg.in/guregu/null.v4"

	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/metrics"
	"github.com/codecurser/park-vision-control-system/internal/repository"
)

// DuplicateWindow is how long a plate/direction pair is blocked after being logged.
const DuplicateWindow = 5 * time.Minute

var ErrStoreFailure = errors.New("log store unavailable")

// EntryNotifier is told about every entry appended to the log.
type EntryNotifier interface {
	NotifyEntry(ctx context.Context, n domain.EntryNotification) error
}

// EntryLog is the newest-first in-memory view of the log store.
type EntryLog struct {
	mu      deadlock.RWMutex
	entries []domain.ParkingEntry
}

func NewEntryLog() *EntryLog {
	return &EntryLog{}
}

// Prepend adds e as the newest entry. It is a no-op when an entry with the
// same ID is already in the view, which happens when a Refresh picked up the
// row between its insert and this call.
func (l *EntryLog) Prepend(e domain.ParkingEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.entries {
		if existing.ID == e.ID {
			return
		}
	}
	next := make([]domain.ParkingEntry, 0, len(l.entries)+1)
	next = append(next, e)
	l.entries = append(next, l.entries...)
}

func (l *EntryLog) Replace(entries []domain.ParkingEntry) {
	cp := make([]domain.ParkingEntry, len(entries))
	copy(cp, entries)
	l.mu.Lock()
	l.entries = cp
	l.mu.Unlock()
}

// Snapshot returns a copy safe to filter and sort.
func (l *EntryLog) Snapshot() []domain.ParkingEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cp := make([]domain.ParkingEntry, len(l.entries))
	copy(cp, l.entries)
	return cp
}

func (l *EntryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// IsDuplicate reports whether entries hold the same plate and direction
// with a timestamp inside [now-DuplicateWindow, now].
func IsDuplicate(entries []domain.ParkingEntry, plate string, entryType domain.EntryType, now time.Time) bool {
	since := now.Add(-DuplicateWindow)
	key := domain.ParkingEntry{PlateNumber: plate, EntryType: entryType}.Key()
	for _, e := range entries {
		if e.Key() != key {
			continue
		}
		if !e.Timestamp.Before(since) && !e.Timestamp.After(now) {
			return true
		}
	}
	return false
}

// NewEntry is a validated plate ready to be logged.
type NewEntry struct {
	Plate      string
	EntryType  domain.EntryType
	Confidence float64
	RawText    string
	CameraID   string
	RecordedBy string
	CaptureID  string
}

type EntryService struct {
	store     repository.EntryStore
	log       *EntryLog
	notifiers []EntryNotifier
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewEntryService(store repository.EntryStore, entryLog *EntryLog, m *metrics.Metrics, notifiers ...EntryNotifier) *EntryService {
	return &EntryService{
		store:     store,
		log:       entryLog,
		notifiers: notifiers,
		metrics:   m,
		now:       time.Now,
	}
}

// AddNotifier registers n for entries logged from now on. Not safe to call
// while captures are running.
func (s *EntryService) AddNotifier(n EntryNotifier) {
	s.notifiers = append(s.notifiers, n)
}

func (s *EntryService) Log() *EntryLog {
	return s.log
}

// Record applies the duplicate rule, appends the entry and notifies listeners.
// The in-memory log only changes after the store accepted the entry.
func (s *EntryService) Record(ctx context.Context, in NewEntry) (*domain.ParkingEntry, error) {
	if !in.EntryType.Valid() {
		return nil, fmt.Errorf("EntryService.Record: %w", domain.ErrInvalidEntryType)
	}
	now := s.now().UTC()

	if IsDuplicate(s.log.Snapshot(), in.Plate, in.EntryType, now) {
		return nil, fmt.Errorf("%s %s already logged within %s: %w", in.EntryType, in.Plate, DuplicateWindow, repository.ErrDuplicateEntry)
	}
	recent, err := s.store.ExistsRecent(ctx, in.Plate, in.EntryType, now.Add(-DuplicateWindow))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	if recent {
		return nil, fmt.Errorf("%s %s already logged within %s: %w", in.EntryType, in.Plate, DuplicateWindow, repository.ErrDuplicateEntry)
	}

	entry := &domain.ParkingEntry{
		PlateNumber: in.Plate,
		EntryType:   in.EntryType,
		Timestamp:   now,
		Confidence:  null.FloatFrom(in.Confidence),
		RawText:     null.NewString(in.RawText, in.RawText != ""),
		CameraID:    null.NewString(in.CameraID, in.CameraID != ""),
		RecordedBy:  null.NewString(in.RecordedBy, in.RecordedBy != ""),
	}
	created, err := s.store.Insert(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	s.log.Prepend(*created)
	s.metrics.EntryLogged(string(created.EntryType))
	log.Info().Str("component", "ENTRY_LOG").
		Str("capture_id", in.CaptureID).
		Str("plate", created.PlateNumber).
		Str("entry_type", string(created.EntryType)).
		Str("id", created.ID).
		Msg("entry logged")

	s.notify(ctx, domain.EntryNotification{
		Type:      domain.NotificationEntryLogged,
		Entry:     *created,
		CaptureID: in.CaptureID,
		SentAt:    now,
	})
	return created, nil
}

func (s *EntryService) notify(ctx context.Context, n domain.EntryNotification) {
	for _, notifier := range s.notifiers {
		if err := notifier.NotifyEntry(ctx, n); err != nil {
			log.Warn().Err(err).Str("component", "ENTRY_LOG").
				Str("capture_id", n.CaptureID).
				Msgf("notifier %T failed", notifier)
		}
	}
}

// Refresh reloads the in-memory log from the store. On failure the
// previous view is kept.
func (s *EntryService) Refresh(ctx context.Context) error {
	entries, err := s.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	s.log.Replace(entries)
	log.Debug().Str("component", "ENTRY_LOG").Int("count", len(entries)).Msg("log refreshed")
	return nil
}

// Entries returns the current newest-first snapshot.
func (s *EntryService) Entries() []domain.ParkingEntry {
	return s.log.Snapshot()
}
