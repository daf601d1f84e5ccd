package repository

import (
	"context"
	"errors"
	"time"

	"github.com/codecurser/park-vision-control-system/internal/domain"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")
var ErrInvalidRole = errors.New("unknown user role")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
}

// EntryStore persists parking entries. Entries are append-only.
type EntryStore interface {
	// Insert stores the entry and returns the created row.
	Insert(ctx context.Context, entry *domain.ParkingEntry) (*domain.ParkingEntry, error)
	// ListAll returns every entry, newest timestamp first.
	ListAll(ctx context.Context) ([]domain.ParkingEntry, error)
	// ExistsRecent reports whether plate/entryType was recorded at or after since.
	ExistsRecent(ctx context.Context, plate string, entryType domain.EntryType, since time.Time) (bool, error)
}
