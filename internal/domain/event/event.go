package event

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("event: not found")
	ErrTitleRequired = errors.New("event: title is required")
	ErrOwnerRequired = errors.New("event: owner is required")
	ErrFull          = errors.New("event: at capacity")
)

// Location is a point on the map.
type Location struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lon float64 `json:"lon" bson:"lon"`
}

// Event is a map event users can discover and join. Capacity of zero means
// unlimited.
type Event struct {
	ID             string    `json:"id" bson:"_id"`
	OwnerID        string    `json:"owner_id" bson:"owner_id"`
	Title          string    `json:"title" bson:"title"`
	Description    string    `json:"description,omitempty" bson:"description,omitempty"`
	Location       Location  `json:"location" bson:"location"`
	Tags           []string  `json:"tags,omitempty" bson:"tags,omitempty"`
	Capacity       int       `json:"capacity,omitempty" bson:"capacity,omitempty"`
	ParticipantIDs []string  `json:"participant_ids" bson:"participant_ids"`
	ImageURLs      []string  `json:"image_urls,omitempty" bson:"image_urls,omitempty"`
	StartsAt       time.Time `json:"starts_at" bson:"starts_at"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// Validate checks the invariants required at creation time.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrTitleRequired
	}
	if strings.TrimSpace(e.OwnerID) == "" {
		return ErrOwnerRequired
	}
	return nil
}

// PinCategory resolves the event's map pin from its tags.
func (e Event) PinCategory() Category {
	return ClassifyTags(e.Tags)
}

// CapacityState resolves the event's fill state from capacity and the
// current participant count.
func (e Event) CapacityState() CapacityState {
	return ClassifyCapacity(e.Capacity, len(e.ParticipantIDs))
}

// Store is the persistence contract for events.
type Store interface {
	CreateEvent(ctx context.Context, ev Event) error
	EventByID(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context) ([]Event, error)
	JoinEvent(ctx context.Context, id, userID string) error
	LeaveEvent(ctx context.Context, id, userID string) error
}

// EventSink receives domain events for asynchronous fan-out.
type EventSink interface {
	Emit(ctx context.Context, name, aggregate string, payload any) error
}
