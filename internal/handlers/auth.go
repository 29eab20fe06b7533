package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chopmeet-service/internal/auth"
	"chopmeet-service/internal/models"
	"chopmeet-service/internal/repositories"
	"chopmeet-service/internal/telemetry"
)

// identityService is the surface of the identity provider the handler uses.
type identityService interface {
	SignUp(ctx context.Context, email string, displayName string, password string) (models.User, string, error)
	SignIn(ctx context.Context, email string, password string) (models.User, string, error)
	SignOut(ctx context.Context, token string) error
	GetUser(ctx context.Context, userID string) (models.User, error)
	UpdateDisplayName(ctx context.Context, userID string, displayName string) error
}

// AuthHandler manages account endpoints.
type AuthHandler struct {
	service identityService
	audit   *telemetry.AuditEmitter
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(service identityService, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{service: service, audit: audit}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		Password    string `json:"password" binding:"required,min=6"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := h.service.SignUp(c.Request.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		if errors.Is(err, repositories.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register"})
		return
	}

	h.emitAudit(c, "INFO", "User registered")
	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := h.service.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign in"})
		return
	}

	h.emitAudit(c, "INFO", "User signed in")
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

// Logout handles POST /auth/logout, revoking the presented token.
func (h *AuthHandler) Logout(c *gin.Context) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
		return
	}

	if err := h.service.SignOut(c.Request.Context(), parts[1]); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign out"})
		return
	}

	h.emitAudit(c, "INFO", "User signed out")
	c.Status(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString("userID")
	user, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile handles PATCH /auth/me. Past chat messages keep the
// display name the sender had when they were sent.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		DisplayName string `json:"display_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "display name is empty"})
		return
	}

	if err := h.service.UpdateDisplayName(c.Request.Context(), userID, displayName); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update profile"})
		return
	}

	h.emitAudit(c, "INFO", "Profile updated")
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *AuthHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), telemetry.Entry{
		Level:     level,
		Text:      text,
		RequestID: requestIDFromContext(c),
		UserID:    userIDFromContext(c),
	})
}
