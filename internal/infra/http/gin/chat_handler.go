package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"mapin/internal/app/dto"
	"mapin/internal/domain/chat"
	"mapin/internal/infra/obs"
)

// ChatHTTP exposes the REST side of chat; live delivery runs over the
// websocket handler.
type ChatHTTP interface {
	ListMyConversations(c *gin.Context)
	CreateConversation(c *gin.Context)
	GetConversation(c *gin.Context)
	JoinConversation(c *gin.Context)
	LeaveConversation(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
}

type ChatHandler struct {
	Conversations *chat.ConversationRepository
	Messages      *chat.MessageRepository
	Logger        *slog.Logger
}

// ListMyConversations returns a one-shot snapshot of the viewer's
// conversation list, most recent activity first.
func (h ChatHandler) ListMyConversations(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	updates, err := h.Conversations.ObserveConversations(ctx, p.ID)
	if err != nil {
		h.logError("list conversations failed", err, "user_id", p.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot list conversations"})
		return
	}
	list, ok := <-updates
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot list conversations"})
		return
	}
	collection := dto.ConversationList{Items: make([]dto.Conversation, 0, len(list))}
	for _, conv := range list {
		collection.Items = append(collection.Items, conversationDTO(conv))
	}
	c.JSON(http.StatusOK, collection)
}

// CreateConversation gets or creates the thread for a participant set. The
// identifier is derived from the participants, so retries and concurrent
// creates converge on the same conversation.
func (h ChatHandler) CreateConversation(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req dto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	conv := chat.Conversation{
		ParticipantIDs: req.ParticipantIDs,
		Name:           strings.TrimSpace(req.Name),
	}
	for _, part := range req.Participants {
		conv.Participants = append(conv.Participants, chat.Participant{
			ID:       part.ID,
			Name:     part.Name,
			PhotoURL: part.PhotoURL,
		})
	}
	created, err := h.Conversations.AddConversation(c.Request.Context(), p.ID, conv)
	if err != nil {
		h.logError("create conversation failed", err, "user_id", p.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot create conversation"})
		return
	}
	obs.ConversationsCreated.Inc()
	c.JSON(http.StatusOK, conversationDTO(created.ForViewer(p.ID)))
}

func (h ChatHandler) GetConversation(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	conv, ok := h.loadParticipantConversation(c, p)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, conversationDTO(conv.ForViewer(p.ID)))
}

// JoinConversation adds the viewer to the participant set. Joining twice is
// safe.
func (h ChatHandler) JoinConversation(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	err := h.Conversations.JoinConversation(c.Request.Context(), id, chat.Participant{
		ID:       p.ID,
		Name:     p.Name,
		PhotoURL: p.PhotoURL,
	})
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.logError("join conversation failed", err, "conversation_id", id, "user_id", p.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot join conversation"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h ChatHandler) LeaveConversation(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	if err := h.Conversations.LeaveConversation(c.Request.Context(), p.ID, id); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.logError("leave conversation failed", err, "conversation_id", id, "user_id", p.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot leave conversation"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMessages pages through history: no cursor returns the newest page, a
// cursor returns strictly older messages. Items are chronological within a
// page and next_cursor is empty once history is exhausted.
func (h ChatHandler) ListMessages(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	conv, ok := h.loadParticipantConversation(c, p)
	if !ok {
		return
	}
	page, err := h.Messages.LoadMoreMessages(c.Request.Context(), p.ID, conv.ID, c.Query("cursor"))
	if err != nil {
		if errors.Is(err, chat.ErrBadCursor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return
		}
		h.logError("list messages failed", err, "conversation_id", conv.ID, "user_id", p.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot list messages"})
		return
	}
	c.JSON(http.StatusOK, messagePageDTO(page))
}

// SendMessage appends a message with a server-assigned timestamp. Blank text
// is accepted and dropped.
func (h ChatHandler) SendMessage(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	conv, ok := h.loadParticipantConversation(c, p)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, err := h.Messages.SendMessage(c.Request.Context(), conv.ID, p.ID, req.Text)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.logError("send message failed", err, "conversation_id", conv.ID, "user_id", p.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot send message"})
		return
	}
	if msg == nil {
		c.Status(http.StatusNoContent)
		return
	}
	obs.MessagesSent.Inc()
	c.JSON(http.StatusCreated, messageDTO(msg.ForViewer(p.ID)))
}

func (h ChatHandler) loadParticipantConversation(c *gin.Context, p principal) (*chat.Conversation, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return nil, false
	}
	conv := h.Conversations.ConversationByID(c.Request.Context(), id)
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}
	if !conv.HasParticipant(p.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
		return nil, false
	}
	return conv, true
}

func (h ChatHandler) logError(msg string, err error, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Error(msg, append([]any{"error", err}, attrs...)...)
	}
}

func conversationDTO(conv chat.Conversation) dto.Conversation {
	out := dto.Conversation{
		ID:             conv.ID,
		ParticipantIDs: append([]string(nil), conv.ParticipantIDs...),
		Participants:   make([]dto.Participant, 0, len(conv.Participants)),
		Name:           conv.Name,
		PhotoURL:       conv.PhotoURL,
		LastMessage:    conv.LastMessage,
		LastMessageAt:  conv.LastMessageAt,
		CreatedAt:      conv.CreatedAt,
	}
	for _, part := range conv.Participants {
		out.Participants = append(out.Participants, dto.Participant{
			ID:       part.ID,
			Name:     part.Name,
			PhotoURL: part.PhotoURL,
		})
	}
	return out
}

func messageDTO(msg chat.Message) dto.ChatMessage {
	return dto.ChatMessage{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Text:           msg.Text,
		Mine:           msg.Mine,
		SentAt:         msg.SentAt,
	}
}

func messagePageDTO(page chat.MessagePage) dto.ChatMessageList {
	out := dto.ChatMessageList{
		Items:      make([]dto.ChatMessage, 0, len(page.Messages)),
		NextCursor: page.Cursor,
	}
	for _, msg := range page.Messages {
		out.Items = append(out.Items, messageDTO(msg))
	}
	return out
}

var _ ChatHTTP = (*ChatHandler)(nil)
