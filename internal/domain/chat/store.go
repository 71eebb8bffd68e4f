package chat

import "context"

// Store is the persistence contract for conversations and messages. Message
// pages are returned newest-first; repositories re-order for delivery.
//
// Watch channels tick on every relevant change and are closed when the
// context is cancelled or the underlying watch fails (the store logs the
// cause). AppendMessage must atomically write the message and the owning
// conversation's last-message preview.
type Store interface {
	// CreateConversation inserts the conversation unless one already exists
	// at its id. Reports whether a new document was created.
	CreateConversation(ctx context.Context, conv Conversation) (bool, error)
	ConversationByID(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)
	JoinConversation(ctx context.Context, id string, p Participant) error
	LeaveConversation(ctx context.Context, id, userID string) error

	AppendMessage(ctx context.Context, msg Message) error
	LatestMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	MessagesBefore(ctx context.Context, conversationID string, before Cursor, limit int) ([]Message, error)

	WatchConversations(ctx context.Context, userID string) (<-chan struct{}, error)
	WatchMessages(ctx context.Context, conversationID string) (<-chan struct{}, error)
}

// EventSink receives domain events for asynchronous fan-out.
type EventSink interface {
	Emit(ctx context.Context, name, aggregate string, payload any) error
}
