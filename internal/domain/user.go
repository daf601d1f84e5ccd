package domain

import "time"

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// ValidRole reports whether role is one the API authorizes against.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleOperator
}

type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"` // bcrypt hash, never serialized
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RegisterUserDTO struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6,max=100"`
}

type LoginUserDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponseDTO struct {
	Token    string `json:"token"`
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// ProfileDTO is what GET /api/v1/me returns for the calling user.
type ProfileDTO struct {
	UserID     int       `json:"user_id"`
	Username   string    `json:"username"`
	Role       string    `json:"role"`
	CanRefresh bool      `json:"can_refresh"`
	CreatedAt  time.Time `json:"created_at"`
}
