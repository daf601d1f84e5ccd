package localstore

import (
	"context"
	"fmt"
	"time"

	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/repository"
)

type userRecord struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u userRecord) toDomain() *domain.User {
	return &domain.User{
		ID:        u.ID,
		Username:  u.Username,
		Password:  u.PasswordHash,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type userRepository struct {
	store *Store
}

func NewUserRepository(s *Store) repository.UserRepository {
	return &userRepository{store: s}
}

func (r *userRepository) load() ([]userRecord, error) {
	var users []userRecord
	if err := r.store.readJSON(UsersKey, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	if !domain.ValidRole(user.Role) {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidRole, user.Role)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("LocalUserRepository.Create: %w", err)
	}
	nextID := 1
	for _, u := range users {
		if u.Username == user.Username {
			return nil, fmt.Errorf("%w: username '%s' is taken", repository.ErrDuplicateEntry, user.Username)
		}
		if u.ID >= nextID {
			nextID = u.ID + 1
		}
	}

	now := time.Now().UTC()
	rec := userRecord{
		ID:           nextID,
		Username:     user.Username,
		PasswordHash: user.Password,
		Role:         user.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.store.writeJSON(UsersKey, append(users, rec)); err != nil {
		return nil, fmt.Errorf("LocalUserRepository.Create: %w", err)
	}
	return rec.toDomain(), nil
}

func (r *userRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("LocalUserRepository.FindByUsername: %w", err)
	}
	for _, u := range users {
		if u.Username == username {
			return u.toDomain(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) FindByID(_ context.Context, id int) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("LocalUserRepository.FindByID: %w", err)
	}
	for _, u := range users {
		if u.ID == id {
			return u.toDomain(), nil
		}
	}
	return nil, repository.ErrNotFound
}
