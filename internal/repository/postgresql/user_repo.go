package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/repository"
)

const userColumns = `id, username, password_hash, role, created_at, updated_at`

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) repository.UserRepository {
	return &pgUserRepository{db: db}
}

// Create stores an account with an already hashed password in user.Password.
// Only the roles the API authorizes against are accepted.
func (r *pgUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if !domain.ValidRole(user.Role) {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidRole, user.Role)
	}
	query := `INSERT INTO users (username, password_hash, role) VALUES ($1, $2, $3) RETURNING ` + userColumns
	created, err := scanUser(r.db.QueryRowContext(ctx, query, user.Username, user.Password, user.Role))
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "users_username_key" {
			return nil, fmt.Errorf("%w: username '%s' is taken", repository.ErrDuplicateEntry, user.Username)
		}
		return nil, fmt.Errorf("UserRepository.Create: %w", err)
	}
	return created, nil
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := r.findOne(ctx, "username = $1", username)
	if err != nil {
		return nil, fmt.Errorf("UserRepository.FindByUsername: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id int) (*domain.User, error) {
	user, err := r.findOne(ctx, "id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("UserRepository.FindByID: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) findOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return user, err
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
