package handlers

import (
	"errors"

	"github.com/copyhere/server/internal/config"
	"github.com/copyhere/server/internal/middleware"
	"github.com/copyhere/server/internal/services"
	"github.com/copyhere/server/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: services.NewAuthService(db, &cfg.JWT, &cfg.LDAP),
	}
}

// Register creates a new account
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.authService.Register(&req)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			response.Conflict(c, "email already registered")
			return
		}
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

// Login verifies credentials and issues a token pair
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pair, err := h.authService.Login(&req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			response.Unauthorized(c, "invalid credentials")
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, pair)
}

type refreshRequest struct {
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh rotates a refresh token and mints a new access token. The
// access token may be expired. All failure modes answer the same 401.
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pair, err := h.authService.Refresh(req.AccessToken, req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, services.ErrInvalidToken) {
			response.Unauthorized(c, "invalid token")
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, pair)
}

type revokeRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Revoke invalidates a refresh token. Revoking an unknown or
// already-revoked token is not an error.
// POST /api/auth/revoke
func (h *AuthHandler) Revoke(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	revoked, err := h.authService.Revoke(req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"revoked": revoked})
}

// GetCurrentUser returns the authenticated user
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}

	response.Success(c, user)
}

// GetAuthConfig tells clients which auth methods the server offers
// GET /api/auth/config
func (h *AuthHandler) GetAuthConfig(c *gin.Context) {
	response.Success(c, gin.H{
		"ldap_enabled": h.authService.IsLDAPEnabled(),
	})
}

// Logout revokes the presented refresh token, if any. Access tokens
// stay valid until they expire; clients drop them locally.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&req)

	if req.RefreshToken != "" {
		if _, err := h.authService.Revoke(req.RefreshToken); err != nil {
			response.Error(c, err)
			return
		}
	}

	response.Success(c, gin.H{"message": "logged out"})
}
