package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"mapin/internal/app/dto"
	"mapin/internal/app/services/social"
	domainsocial "mapin/internal/domain/social"
)

// SocialHTTP exposes friend request endpoints backing the friend deep links.
type SocialHTTP interface {
	SendRequest(c *gin.Context)
	Accept(c *gin.Context)
	Decline(c *gin.Context)
	Incoming(c *gin.Context)
	Friends(c *gin.Context)
}

type SocialHandler struct {
	Service *social.Service
	Logger  *slog.Logger
}

func (h SocialHandler) SendRequest(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		ToID string `json:"to_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	created, err := h.Service.SendRequest(c.Request.Context(), p.ID, req.ToID)
	if err != nil {
		switch {
		case errors.Is(err, domainsocial.ErrSelfRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot friend yourself"})
		case errors.Is(err, domainsocial.ErrAlreadyFriends):
			c.JSON(http.StatusConflict, gin.H{"error": "already friends"})
		case errors.Is(err, domainsocial.ErrRequestNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "to_id is required"})
		default:
			h.logError("send friend request failed", err, "user_id", p.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot send request"})
		}
		return
	}
	c.JSON(http.StatusCreated, friendRequestDTO(*created))
}

func (h SocialHandler) Accept(c *gin.Context) {
	h.resolve(c, h.Service.Accept)
}

func (h SocialHandler) Decline(c *gin.Context) {
	h.resolve(c, h.Service.Decline)
}

func (h SocialHandler) resolve(c *gin.Context, fn func(ctx context.Context, userID, requestID string) error) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request id is required"})
		return
	}
	if err := fn(c.Request.Context(), p.ID, id); err != nil {
		if errors.Is(err, domainsocial.ErrRequestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.logError("resolve friend request failed", err, "request_id", id, "user_id", p.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot resolve request"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h SocialHandler) Incoming(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	requests, err := h.Service.Incoming(c.Request.Context(), p.ID)
	if err != nil {
		h.logError("list friend requests failed", err, "user_id", p.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot list requests"})
		return
	}
	items := make([]dto.FriendRequest, 0, len(requests))
	for _, req := range requests {
		items = append(items, friendRequestDTO(req))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h SocialHandler) Friends(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	friends, err := h.Service.Friends(c.Request.Context(), p.ID)
	if err != nil {
		h.logError("list friends failed", err, "user_id", p.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot list friends"})
		return
	}
	if friends == nil {
		friends = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"items": friends})
}

func (h SocialHandler) logError(msg string, err error, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Error(msg, append([]any{"error", err}, attrs...)...)
	}
}

func friendRequestDTO(req domainsocial.FriendRequest) dto.FriendRequest {
	return dto.FriendRequest{
		ID:        req.ID,
		FromID:    req.FromID,
		ToID:      req.ToID,
		State:     string(req.State),
		CreatedAt: req.CreatedAt,
		UpdatedAt: req.UpdatedAt,
	}
}

var _ SocialHTTP = (*SocialHandler)(nil)
