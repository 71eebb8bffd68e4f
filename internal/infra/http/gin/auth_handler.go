package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"mapin/internal/app/dto"
	"mapin/internal/app/services/auth"
	domainuser "mapin/internal/domain/user"
)

// AuthHTTP exposes account endpoints.
type AuthHTTP interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	Logout(c *gin.Context)
	Me(c *gin.Context)
	UpdateProfile(c *gin.Context)
	Profile(c *gin.Context)
}

type AuthHandler struct {
	Service *auth.Service
	Logger  *slog.Logger
}

func (h AuthHandler) Register(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth unavailable"})
		return
	}
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.Service.Register(c.Request.Context(), auth.RegisterParams{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrPasswordTooShort),
			errors.Is(err, domainuser.ErrEmailRequired),
			errors.Is(err, domainuser.ErrNameRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domainuser.ErrEmailAlreadyUsed):
			c.JSON(http.StatusConflict, gin.H{"error": "email already used"})
		default:
			h.logError("register failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, dto.AuthResponse{Token: result.Token, User: userDTO(result.User, true)})
}

func (h AuthHandler) Login(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth unavailable"})
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.Service.Login(c.Request.Context(), auth.LoginParams{Email: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logError("login failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, dto.AuthResponse{Token: result.Token, User: userDTO(result.User, true)})
}

func (h AuthHandler) Logout(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	if err := h.Service.Logout(c.Request.Context(), p.Token); err != nil {
		h.logError("logout failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h AuthHandler) Me(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	user, err := h.Service.Users.ByID(c.Request.Context(), p.ID)
	if err != nil {
		h.logError("load account failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot load account"})
		return
	}
	c.JSON(http.StatusOK, userDTO(user, true))
}

func (h AuthHandler) UpdateProfile(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		Name     string `json:"name"`
		PhotoURL string `json:"photo_url"`
		Bio      string `json:"bio"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	user, err := h.Service.UpdateProfile(c.Request.Context(), p.ID, req.Name, req.PhotoURL, req.Bio)
	if err != nil {
		h.logError("profile update failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile update failed"})
		return
	}
	c.JSON(http.StatusOK, userDTO(user, true))
}

// Profile returns the public profile behind the mapin://profile deep link.
func (h AuthHandler) Profile(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id is required"})
		return
	}
	user, err := h.Service.Users.ByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.logError("profile lookup failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot load profile"})
		return
	}
	c.JSON(http.StatusOK, userDTO(user, false))
}

func (h AuthHandler) logError(msg string, err error) {
	if h.Logger != nil {
		h.Logger.Error(msg, "error", err)
	}
}

func userDTO(u *domainuser.User, includeEmail bool) dto.User {
	out := dto.User{
		ID:        u.ID,
		Name:      u.Name,
		PhotoURL:  u.PhotoURL,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt,
	}
	if includeEmail {
		out.Email = u.Email
	}
	return out
}

var _ AuthHTTP = (*AuthHandler)(nil)
