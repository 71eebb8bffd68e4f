package dto

import "time"

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Event struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Location       Location  `json:"location"`
	Tags           []string  `json:"tags,omitempty"`
	Capacity       int       `json:"capacity,omitempty"`
	ParticipantIDs []string  `json:"participant_ids"`
	ImageURLs      []string  `json:"image_urls,omitempty"`
	PinCategory    string    `json:"pin_category"`
	CapacityState  string    `json:"capacity_state"`
	StartsAt       time.Time `json:"starts_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type EventList struct {
	Items []Event `json:"items"`
}

type CreateEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    Location  `json:"location"`
	Tags        []string  `json:"tags"`
	Capacity    int       `json:"capacity"`
	StartsAt    time.Time `json:"starts_at"`
}

type RouteResponse struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds int     `json:"duration_seconds"`
	Distance        string  `json:"distance"`
	Duration        string  `json:"duration"`
}

type UploadResponse struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Kind string `json:"kind"`
}

type FriendRequest struct {
	ID        string    `json:"id"`
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
