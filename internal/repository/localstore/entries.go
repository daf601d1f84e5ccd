package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/repository"
)

// entryRecord is the persisted shape; timestamps travel as strings.
type entryRecord struct {
	ID          string `json:"id"`
	PlateNumber string `json:"plate_number"`
	Timestamp   string `json:"timestamp"`
	EntryType   string `json:"entry_type"`
}

// MarshalEntries encodes entries in the persisted JSON shape.
func MarshalEntries(entries []domain.ParkingEntry) ([]byte, error) {
	records := make([]entryRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, entryRecord{
			ID:          e.ID,
			PlateNumber: e.PlateNumber,
			Timestamp:   e.Timestamp.UTC().Format(domain.TimestampLayout),
			EntryType:   string(e.EntryType),
		})
	}
	return json.Marshal(records)
}

// UnmarshalEntries parses the persisted shape back into entries, turning
// timestamp strings into UTC times.
func UnmarshalEntries(data []byte) ([]domain.ParkingEntry, error) {
	var records []entryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	entries := make([]domain.ParkingEntry, 0, len(records))
	for _, r := range records {
		ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("entry %s: bad timestamp %q: %w", r.ID, r.Timestamp, err)
		}
		et, err := domain.ParseEntryType(r.EntryType)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", r.ID, err)
		}
		entries = append(entries, domain.ParkingEntry{
			ID:          r.ID,
			PlateNumber: r.PlateNumber,
			EntryType:   et,
			Timestamp:   ts.UTC(),
		})
	}
	return entries, nil
}

type entryStore struct {
	store *Store
}

func NewEntryStore(s *Store) repository.EntryStore {
	return &entryStore{store: s}
}

func (r *entryStore) load() ([]domain.ParkingEntry, error) {
	data, err := r.store.readRaw(EntriesKey)
	if err != nil || data == nil {
		return []domain.ParkingEntry{}, err
	}
	return UnmarshalEntries(data)
}

func (r *entryStore) Insert(_ context.Context, entry *domain.ParkingEntry) (*domain.ParkingEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("LocalEntryStore.Insert: %w", err)
	}

	created := domain.ParkingEntry{
		ID:          entry.ID,
		PlateNumber: entry.PlateNumber,
		EntryType:   entry.EntryType,
		Timestamp:   entry.Timestamp.UTC().Truncate(time.Millisecond),
	}
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	for _, e := range entries {
		if e.ID == created.ID {
			return nil, fmt.Errorf("%w: entry %s", repository.ErrDuplicateEntry, created.ID)
		}
	}

	entries = append([]domain.ParkingEntry{created}, entries...)
	data, err := MarshalEntries(entries)
	if err != nil {
		return nil, fmt.Errorf("LocalEntryStore.Insert: %w", err)
	}
	if err := r.store.writeRaw(EntriesKey, data); err != nil {
		return nil, fmt.Errorf("LocalEntryStore.Insert: %w", err)
	}
	return &created, nil
}

func (r *entryStore) ListAll(_ context.Context) ([]domain.ParkingEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("LocalEntryStore.ListAll: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

func (r *entryStore) ExistsRecent(_ context.Context, plate string, entryType domain.EntryType, since time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return false, fmt.Errorf("LocalEntryStore.ExistsRecent: %w", err)
	}
	for _, e := range entries {
		if e.PlateNumber == plate && e.EntryType == entryType && !e.Timestamp.Before(since) {
			return true, nil
		}
	}
	return false, nil
}
