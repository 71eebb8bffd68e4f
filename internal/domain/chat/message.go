package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PageSize is the fixed size of message pages (spec'd by the mobile client).
const PageSize = 50

// ErrBadCursor marks a pagination cursor that does not parse.
var ErrBadCursor = errors.New("chat: invalid cursor")

// SnippetMax bounds the denormalized last-message preview.
const SnippetMax = 500

// Message is a single chat message. Mine is derived against the viewer at
// read time and never persisted.
type Message struct {
	ID             string    `json:"id" bson:"_id"`
	ConversationID string    `json:"conversation_id" bson:"conversation_id"`
	SenderID       string    `json:"sender_id" bson:"sender_id"`
	Text           string    `json:"text" bson:"text"`
	SentAt         time.Time `json:"sent_at" bson:"sent_at"`
	Mine           bool      `json:"mine" bson:"-"`
}

// ForViewer returns a copy with the Mine flag resolved for the viewer.
func (m Message) ForViewer(viewerID string) Message {
	m.Mine = viewerID != "" && m.SenderID == viewerID
	return m
}

// MessagePage is one chronological (oldest-first) page of messages plus the
// cursor resuming the next older page. Cursor is empty when exhausted.
type MessagePage struct {
	Messages []Message `json:"messages"`
	Cursor   string    `json:"cursor,omitempty"`
}

// Cursor marks the oldest message of a fetched page.
type Cursor struct {
	SentAt    time.Time
	MessageID string
}

// Encode renders the cursor in the wire format "unixNanos|messageID".
func (c Cursor) Encode() string {
	if c.MessageID == "" {
		return ""
	}
	return fmt.Sprintf("%d|%s", c.SentAt.UTC().UnixNano(), c.MessageID)
}

// ParseCursor decodes a cursor produced by Encode. An empty input yields a
// zero cursor and no error.
func ParseCursor(raw string) (Cursor, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Cursor{}, nil
	}
	parts := strings.Split(trimmed, "|")
	if len(parts) != 2 || parts[1] == "" {
		return Cursor{}, fmt.Errorf("%w: %q", ErrBadCursor, raw)
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %q", ErrBadCursor, raw)
	}
	return Cursor{SentAt: time.Unix(0, nanos).UTC(), MessageID: parts[1]}, nil
}

// IsZero reports whether the cursor is unset.
func (c Cursor) IsZero() bool {
	return c.MessageID == ""
}
