package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/repository"
)

type pgParkingEntryRepository struct {
	db *sql.DB
}

func NewPgParkingEntryRepository(db *sql.DB) repository.EntryStore {
	return &pgParkingEntryRepository{db: db}
}

const entryColumns = `id, plate_number, entry_type, timestamp, created_at, confidence, raw_text, camera_id, recorded_by`

func (r *pgParkingEntryRepository) Insert(ctx context.Context, entry *domain.ParkingEntry) (*domain.ParkingEntry, error) {
	query := `INSERT INTO parking_entries 
	           (plate_number, entry_type, timestamp, confidence, raw_text, camera_id, recorded_by, created_at) 
	           VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP) 
	           RETURNING ` + entryColumns

	created, err := scanEntry(r.db.QueryRowContext(ctx, query,
		entry.PlateNumber, entry.EntryType, entry.Timestamp.UTC(),
		entry.Confidence, entry.RawText, entry.CameraID, entry.RecordedBy,
	))
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, fmt.Errorf("%w: entry %s", repository.ErrDuplicateEntry, entry.ID)
		}
		return nil, fmt.Errorf("ParkingEntryRepository.Insert: %w", err)
	}
	return created, nil
}

func (r *pgParkingEntryRepository) ListAll(ctx context.Context) ([]domain.ParkingEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM parking_entries ORDER BY timestamp DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ParkingEntryRepository.ListAll: %w", err)
	}
	defer rows.Close()

	entries := []domain.ParkingEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ParkingEntryRepository.ListAll (scanning row): %w", err)
		}
		entries = append(entries, *entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ParkingEntryRepository.ListAll (rows error): %w", err)
	}
	return entries, nil
}

func (r *pgParkingEntryRepository) ExistsRecent(ctx context.Context, plate string, entryType domain.EntryType, since time.Time) (bool, error) {
	query := `SELECT EXISTS (
	              SELECT 1 FROM parking_entries 
	              WHERE plate_number = $1 AND entry_type = $2 AND timestamp >= $3
	          )`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, plate, entryType, since.UTC()).Scan(&exists); err != nil {
		return false, fmt.Errorf("ParkingEntryRepository.ExistsRecent: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.ParkingEntry, error) {
	var e domain.ParkingEntry
	if err := row.Scan(
		&e.ID, &e.PlateNumber, &e.EntryType, &e.Timestamp, &e.CreatedAt,
		&e.Confidence, &e.RawText, &e.CameraID, &e.RecordedBy,
	); err != nil {
		return nil, err
	}
	e.Timestamp = e.Timestamp.In(time.UTC)
	e.CreatedAt = e.CreatedAt.In(time.UTC)
	return &e, nil
}
