package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConversationRepository exposes conversation operations to the transport
// layer. Live observation bridges store change ticks into a channel whose
// lifetime is bound to the caller's context.
type ConversationRepository struct {
	Store  Store
	Events EventSink
	Logger *slog.Logger
}

// ObserveConversations returns a channel that delivers the viewer's full
// conversation list, ordered by most recent activity, re-emitted on every
// change. Two-party threads carry the counterpart's display identity. The
// channel is closed when ctx is cancelled or the underlying watch fails.
func (r *ConversationRepository) ObserveConversations(ctx context.Context, viewerID string) (<-chan []Conversation, error) {
	viewerID = strings.TrimSpace(viewerID)
	if viewerID == "" {
		return nil, ErrUnauthenticated
	}
	ticks, err := r.Store.WatchConversations(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("watch conversations: %w", err)
	}
	out := make(chan []Conversation, 1)
	go func() {
		defer close(out)
		if !r.emit(ctx, viewerID, out) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ticks:
				if !ok {
					return
				}
				if !r.emit(ctx, viewerID, out) {
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *ConversationRepository) emit(ctx context.Context, viewerID string, out chan<- []Conversation) bool {
	list, err := r.Store.ListConversations(ctx, viewerID)
	if err != nil {
		r.logError("list conversations failed", err, "user_id", viewerID)
		return false
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].LastActivity().After(list[j].LastActivity())
	})
	projected := make([]Conversation, 0, len(list))
	for _, conv := range list {
		projected = append(projected, conv.ForViewer(viewerID))
	}
	select {
	case <-ctx.Done():
		return false
	case out <- projected:
		return true
	}
}

// AddConversation creates the conversation if it does not already exist and
// appends the outbox record for broker fan-out. The creator is always ensured
// present in the participant list. When the conversation already exists the
// stored document is returned, not the caller's draft.
func (r *ConversationRepository) AddConversation(ctx context.Context, viewerID string, conv Conversation) (Conversation, error) {
	viewerID = strings.TrimSpace(viewerID)
	if viewerID == "" {
		return Conversation{}, ErrUnauthenticated
	}
	conv.ParticipantIDs = NormalizeParticipantIDs(append(conv.ParticipantIDs, viewerID))
	if !hasParticipantSnapshot(conv.Participants, viewerID) {
		conv.Participants = append(conv.Participants, Participant{ID: viewerID})
	}
	if strings.TrimSpace(conv.ID) == "" {
		conv.ID = NewUID(conv.ParticipantIDs)
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	created, err := r.Store.CreateConversation(ctx, conv)
	if err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	if !created {
		existing, err := r.Store.ConversationByID(ctx, conv.ID)
		if err != nil {
			return Conversation{}, fmt.Errorf("load conversation: %w", err)
		}
		return *existing, nil
	}
	if r.Events != nil {
		if err := r.Events.Emit(ctx, "chat.conversation_created", conv.ID, map[string]any{
			"conversation_id": conv.ID,
			"participant_ids": conv.ParticipantIDs,
		}); err != nil {
			return Conversation{}, fmt.Errorf("record conversation event: %w", err)
		}
	}
	return conv, nil
}

// JoinConversation adds the participant id and profile snapshot. Duplicate
// joins are safe (union semantics).
func (r *ConversationRepository) JoinConversation(ctx context.Context, id string, p Participant) error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrUnauthenticated
	}
	if err := r.Store.JoinConversation(ctx, id, p); err != nil {
		return fmt.Errorf("join conversation: %w", err)
	}
	return nil
}

// LeaveConversation removes the viewer from both participant lists in a
// single atomic store operation.
func (r *ConversationRepository) LeaveConversation(ctx context.Context, viewerID, id string) error {
	viewerID = strings.TrimSpace(viewerID)
	if viewerID == "" {
		return ErrUnauthenticated
	}
	if err := r.Store.LeaveConversation(ctx, id, viewerID); err != nil {
		return fmt.Errorf("leave conversation: %w", err)
	}
	return nil
}

// ConversationExists reports whether a conversation exists at the id. Store
// errors are logged and reported as absent; callers treat the result as a
// hint only.
func (r *ConversationRepository) ConversationExists(ctx context.Context, id string) bool {
	return r.ConversationByID(ctx, id) != nil
}

// ConversationByID returns the conversation or nil when missing. Store
// errors are logged and reported as absent; callers treat the result as a
// hint only.
func (r *ConversationRepository) ConversationByID(ctx context.Context, id string) *Conversation {
	conv, err := r.Store.ConversationByID(ctx, id)
	if err != nil {
		if err != ErrNotFound {
			r.logError("conversation lookup failed", err, "conversation_id", id)
		}
		return nil
	}
	return conv
}

func (r *ConversationRepository) logError(msg string, err error, attrs ...any) {
	if r.Logger != nil {
		r.Logger.Error(msg, append([]any{"error", err}, attrs...)...)
	}
}

func hasParticipantSnapshot(participants []Participant, id string) bool {
	for _, p := range participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

// MessageRepository exposes paginated message retrieval and send operations.
type MessageRepository struct {
	Store  Store
	Events EventSink
	Logger *slog.Logger

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

// ObserveMessages returns a channel that re-delivers the newest page of the
// conversation, chronological order, on every change. Each page carries the
// cursor for loading older history. The channel is closed when ctx is
// cancelled or the underlying watch fails.
func (r *MessageRepository) ObserveMessages(ctx context.Context, viewerID, conversationID string) (<-chan MessagePage, error) {
	viewerID = strings.TrimSpace(viewerID)
	if viewerID == "" {
		return nil, ErrUnauthenticated
	}
	ticks, err := r.Store.WatchMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("watch messages: %w", err)
	}
	out := make(chan MessagePage, 1)
	go func() {
		defer close(out)
		if !r.emitPage(ctx, viewerID, conversationID, out) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ticks:
				if !ok {
					return
				}
				if !r.emitPage(ctx, viewerID, conversationID, out) {
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *MessageRepository) emitPage(ctx context.Context, viewerID, conversationID string, out chan<- MessagePage) bool {
	newest, err := r.Store.LatestMessages(ctx, conversationID, PageSize)
	if err != nil {
		r.logError("latest messages failed", err, "conversation_id", conversationID)
		return false
	}
	page := buildPage(newest, viewerID)
	select {
	case <-ctx.Done():
		return false
	case out <- page:
		return true
	}
}

// SendMessage appends a message with a server-assigned timestamp and updates
// the conversation preview in the same atomic store operation. Blank text is
// a no-op. A failed outbox append surfaces as an error even though the
// message is already durable; the caller sees the send as failed and retries,
// which restores the fan-out guarantee at the cost of a possible duplicate.
func (r *MessageRepository) SendMessage(ctx context.Context, conversationID, senderID, text string) (*Message, error) {
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	msg := Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		SentAt:         r.now(),
	}
	if err := r.Store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if r.Events != nil {
		if err := r.Events.Emit(ctx, "chat.message_sent", conversationID, map[string]any{
			"conversation_id": conversationID,
			"message_id":      msg.ID,
			"sender_id":       senderID,
			"sent_at":         msg.SentAt,
		}); err != nil {
			return nil, fmt.Errorf("record message event: %w", err)
		}
	}
	return &msg, nil
}

// LoadMoreMessages fetches the page strictly older than the cursor. A blank
// cursor fetches the newest page. The returned cursor is empty once history
// is exhausted.
func (r *MessageRepository) LoadMoreMessages(ctx context.Context, viewerID, conversationID, rawCursor string) (MessagePage, error) {
	viewerID = strings.TrimSpace(viewerID)
	if viewerID == "" {
		return MessagePage{}, ErrUnauthenticated
	}
	cursor, err := ParseCursor(rawCursor)
	if err != nil {
		return MessagePage{}, err
	}
	var newest []Message
	if cursor.IsZero() {
		newest, err = r.Store.LatestMessages(ctx, conversationID, PageSize)
	} else {
		newest, err = r.Store.MessagesBefore(ctx, conversationID, cursor, PageSize)
	}
	if err != nil {
		return MessagePage{}, fmt.Errorf("load messages: %w", err)
	}
	page := buildPage(newest, viewerID)
	if len(newest) < PageSize {
		// short page means history is exhausted
		page.Cursor = ""
	}
	return page, nil
}

func (r *MessageRepository) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *MessageRepository) logError(msg string, err error, attrs ...any) {
	if r.Logger != nil {
		r.Logger.Error(msg, append([]any{"error", err}, attrs...)...)
	}
}

// buildPage reverses a newest-first slice into chronological order, applies
// the viewer projection and attaches the cursor at the oldest message.
func buildPage(newest []Message, viewerID string) MessagePage {
	page := MessagePage{Messages: make([]Message, 0, len(newest))}
	for i := len(newest) - 1; i >= 0; i-- {
		page.Messages = append(page.Messages, newest[i].ForViewer(viewerID))
	}
	if len(newest) > 0 {
		oldest := newest[len(newest)-1]
		page.Cursor = Cursor{SentAt: oldest.SentAt, MessageID: oldest.ID}.Encode()
	}
	return page
}
