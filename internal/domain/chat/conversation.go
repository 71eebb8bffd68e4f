package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("chat: conversation not found")
	ErrUnauthenticated = errors.New("chat: no authenticated user")
)

// Participant is a denormalized profile snapshot embedded in a conversation.
type Participant struct {
	ID       string `json:"id" bson:"id"`
	Name     string `json:"name" bson:"name"`
	PhotoURL string `json:"photo_url,omitempty" bson:"photo_url,omitempty"`
}

// Conversation is a chat thread between a set of participants. Name and
// PhotoURL are the display identity; for two-party threads they are derived
// per viewer and never stored.
type Conversation struct {
	ID             string        `json:"id" bson:"_id"`
	ParticipantIDs []string      `json:"participant_ids" bson:"participant_ids"`
	Participants   []Participant `json:"participants" bson:"participants"`
	LastMessage    string        `json:"last_message,omitempty" bson:"last_message,omitempty"`
	LastMessageAt  time.Time     `json:"last_message_at,omitempty" bson:"last_message_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at" bson:"created_at"`
	Name           string        `json:"name,omitempty" bson:"name,omitempty"`
	PhotoURL       string        `json:"photo_url,omitempty" bson:"photo_url,omitempty"`
}

// NewUID derives the identifier for a conversation between the given
// participants. An empty set yields a fresh random identifier; otherwise the
// id is a hash of the sorted, deduplicated participant set, so any ordering
// of the same participants maps to the same conversation.
func NewUID(participantIDs []string) string {
	ids := NormalizeParticipantIDs(participantIDs)
	if len(ids) == 0 {
		return uuid.NewString()
	}
	sum := sha256.Sum256([]byte(strings.Join(ids, "\n")))
	return hex.EncodeToString(sum[:])
}

// NormalizeParticipantIDs trims, deduplicates and sorts participant ids.
func NormalizeParticipantIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ForViewer returns a copy with the display identity resolved for the viewer:
// a two-party thread shows the counterpart's name and photo.
func (c Conversation) ForViewer(viewerID string) Conversation {
	c.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	c.Participants = append([]Participant(nil), c.Participants...)
	if len(c.ParticipantIDs) != 2 {
		return c
	}
	for _, p := range c.Participants {
		if p.ID != viewerID {
			c.Name = p.Name
			c.PhotoURL = p.PhotoURL
			return c
		}
	}
	return c
}

// HasParticipant reports whether the user is in the participant id list.
func (c Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// LastActivity orders conversation lists: preview timestamp when present,
// creation time otherwise.
func (c Conversation) LastActivity() time.Time {
	if !c.LastMessageAt.IsZero() {
		return c.LastMessageAt
	}
	return c.CreatedAt
}

// TrimSnippet bounds the denormalized preview text stored on a conversation.
func TrimSnippet(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max])
}
