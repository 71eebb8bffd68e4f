package social

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRequestNotFound = errors.New("social: friend request not found")
	ErrSelfRequest     = errors.New("social: cannot friend yourself")
	ErrAlreadyFriends  = errors.New("social: already friends")
)

// RequestState tracks a friend request lifecycle.
type RequestState string

const (
	RequestPending  RequestState = "pending"
	RequestAccepted RequestState = "accepted"
	RequestDeclined RequestState = "declined"
)

// FriendRequest is a pending or resolved friendship offer.
type FriendRequest struct {
	ID        string       `json:"id"`
	FromID    string       `json:"from_id"`
	ToID      string       `json:"to_id"`
	State     RequestState `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Store persists friend requests and resolved friendships.
type Store interface {
	SaveRequest(ctx context.Context, req FriendRequest) error
	RequestByID(ctx context.Context, id string) (*FriendRequest, error)
	// PendingRequestBetween finds an open request in either direction.
	PendingRequestBetween(ctx context.Context, a, b string) (*FriendRequest, error)
	ListIncoming(ctx context.Context, userID string) ([]FriendRequest, error)
	AddFriendship(ctx context.Context, a, b string) error
	AreFriends(ctx context.Context, a, b string) (bool, error)
	ListFriends(ctx context.Context, userID string) ([]string, error)
}
