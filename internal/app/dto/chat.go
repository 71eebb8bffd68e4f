// Package dto holds the JSON shapes exchanged with the mobile client.
package dto

import "time"

type Participant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url,omitempty"`
}

type Conversation struct {
	ID             string        `json:"id"`
	ParticipantIDs []string      `json:"participant_ids"`
	Participants   []Participant `json:"participants"`
	Name           string        `json:"name,omitempty"`
	PhotoURL       string        `json:"photo_url,omitempty"`
	LastMessage    string        `json:"last_message,omitempty"`
	LastMessageAt  time.Time     `json:"last_message_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

type ConversationList struct {
	Items []Conversation `json:"items"`
}

type CreateConversationRequest struct {
	ParticipantIDs []string      `json:"participant_ids"`
	Participants   []Participant `json:"participants"`
	Name           string        `json:"name"`
}

type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	Mine           bool      `json:"mine"`
	SentAt         time.Time `json:"sent_at"`
}

type ChatMessageList struct {
	Items      []ChatMessage `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type SendMessageRequest struct {
	Text string `json:"text"`
}
