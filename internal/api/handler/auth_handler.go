package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/codecurser/park-vision-control-system/internal/api/middleware"
	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(as *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// POST /auth/register
// Self-registration always yields an operator; admins come from EnsureAdmin.
func (h *AuthHandler) Register(c *gin.Context) {
	var dto domain.RegisterUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "details": err.Error()})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), dto)
	switch {
	case errors.Is(err, service.ErrUserAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
		return
	case err != nil:
		log.Error().Err(err).Str("component", "AUTH").Str("username", dto.Username).Msg("register failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not register operator"})
		return
	}

	log.Info().Str("component", "AUTH").Str("username", user.Username).Str("role", user.Role).Msg("operator registered")
	c.JSON(http.StatusCreated, domain.ProfileDTO{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	})
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var dto domain.LoginUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "details": err.Error()})
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), dto)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		log.Warn().Str("component", "AUTH").Str("username", dto.Username).Str("client_ip", c.ClientIP()).Msg("login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	case err != nil:
		log.Error().Err(err).Str("component", "AUTH").Msg("login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/v1/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, err := strconv.Atoi(c.GetString(middleware.UserIDKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user claims in token"})
		return
	}

	profile, err := h.authService.Profile(c.Request.Context(), userID)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account no longer exists"})
		return
	case err != nil:
		log.Error().Err(err).Str("component", "AUTH").Int("user_id", userID).Msg("profile lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}
