package localstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/repository"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestMarshalEntries_RoundTrip(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 15, 42, 987_654_321, time.FixedZone("ICT", 7*3600))
	in := []domain.ParkingEntry{
		{ID: "a", PlateNumber: "ABC123", EntryType: domain.EntryTypeEntry, Timestamp: base},
		{ID: "b", PlateNumber: "XY99", EntryType: domain.EntryTypeExit, Timestamp: base.Add(-time.Hour)},
	}

	data, err := MarshalEntries(in)
	require.NoError(t, err)
	out, err := UnmarshalEntries(data)
	require.NoError(t, err)

	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i].ID, out[i].ID)
		assert.Equal(t, in[i].PlateNumber, out[i].PlateNumber)
		assert.Equal(t, in[i].EntryType, out[i].EntryType)
		assert.True(t, in[i].Timestamp.Truncate(time.Second).Equal(out[i].Timestamp.Truncate(time.Second)),
			"timestamp %d: %s vs %s", i, in[i].Timestamp, out[i].Timestamp)
	}
}

func TestMarshalEntries_Shape(t *testing.T) {
	ts := time.Date(2024, 3, 1, 2, 3, 4, 500_000_000, time.UTC)
	data, err := MarshalEntries([]domain.ParkingEntry{
		{ID: "id-1", PlateNumber: "ABC123", EntryType: domain.EntryTypeEntry, Timestamp: ts},
	})
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, map[string]any{
		"id":           "id-1",
		"plate_number": "ABC123",
		"timestamp":    "2024-03-01T02:03:04.500Z",
		"entry_type":   "Entry",
	}, raw[0])
}

func TestUnmarshalEntries_BadTimestamp(t *testing.T) {
	_, err := UnmarshalEntries([]byte(`[{"id":"x","plate_number":"AB12","timestamp":"yesterday","entry_type":"Entry"}]`))
	assert.Error(t, err)
}

func TestEntryStore_InsertListExists(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	store := NewEntryStore(s)

	entries, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first, err := store.Insert(ctx, &domain.ParkingEntry{PlateNumber: "ABC123", EntryType: domain.EntryTypeEntry, Timestamp: now.Add(-10 * time.Minute)})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := store.Insert(ctx, &domain.ParkingEntry{PlateNumber: "ABC123", EntryType: domain.EntryTypeExit, Timestamp: now})
	require.NoError(t, err)

	entries, err = store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID, "newest first")
	assert.Equal(t, first.ID, entries[1].ID)

	ok, err := store.ExistsRecent(ctx, "ABC123", domain.EntryTypeExit, now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ExistsRecent(ctx, "ABC123", domain.EntryTypeEntry, now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.ExistsRecent(ctx, "abc123", domain.EntryTypeExit, now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "plate comparison is exact")
}

func TestEntryStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := Open(dir)
	require.NoError(t, err)
	created, err := NewEntryStore(s1).Insert(ctx, &domain.ParkingEntry{
		ID: "fixed", PlateNumber: "QWE555", EntryType: domain.EntryTypeEntry, Timestamp: time.Now(),
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, EntriesKey+".json"))
	require.NoError(t, err)

	s2, err := Open(dir)
	require.NoError(t, err)
	entries, err := NewEntryStore(s2).ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fixed", entries[0].ID)
	assert.True(t, created.Timestamp.Equal(entries[0].Timestamp))

	_, err = NewEntryStore(s2).Insert(ctx, &domain.ParkingEntry{
		ID: "fixed", PlateNumber: "QWE555", EntryType: domain.EntryTypeExit, Timestamp: time.Now(),
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)
}

func TestEntryStore_CorruptFileFails(t *testing.T) {
	s := openStore(t)
	require.NoError(t, os.WriteFile(s.path(EntriesKey), []byte("{not json"), 0o644))

	_, err := NewEntryStore(s).ListAll(context.Background())
	assert.Error(t, err)
}
