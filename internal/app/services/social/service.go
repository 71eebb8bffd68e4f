package social

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	domainsocial "mapin/internal/domain/social"
)

var ErrNotConfigured = errors.New("social: service not configured")

// Service manages friend requests backing the friend deep-link screens.
type Service struct {
	Store  domainsocial.Store
	Logger *slog.Logger
}

// SendRequest creates a pending friend request from one user to another.
// Re-sending while a request is already open returns the open request.
func (s *Service) SendRequest(ctx context.Context, fromID, toID string) (*domainsocial.FriendRequest, error) {
	if s.Store == nil {
		return nil, ErrNotConfigured
	}
	fromID = strings.TrimSpace(fromID)
	toID = strings.TrimSpace(toID)
	if fromID == "" || toID == "" {
		return nil, domainsocial.ErrRequestNotFound
	}
	if fromID == toID {
		return nil, domainsocial.ErrSelfRequest
	}
	friends, err := s.Store.AreFriends(ctx, fromID, toID)
	if err != nil {
		return nil, err
	}
	if friends {
		return nil, domainsocial.ErrAlreadyFriends
	}
	if existing, err := s.Store.PendingRequestBetween(ctx, fromID, toID); err == nil && existing != nil {
		return existing, nil
	}
	now := time.Now().UTC()
	req := domainsocial.FriendRequest{
		ID:        uuid.NewString(),
		FromID:    fromID,
		ToID:      toID,
		State:     domainsocial.RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.SaveRequest(ctx, req); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("friend request sent", "from", fromID, "to", toID)
	}
	return &req, nil
}

// Accept resolves a pending request addressed to the user and records the
// friendship.
func (s *Service) Accept(ctx context.Context, userID, requestID string) error {
	return s.resolve(ctx, userID, requestID, domainsocial.RequestAccepted)
}

// Decline resolves a pending request addressed to the user without creating
// a friendship.
func (s *Service) Decline(ctx context.Context, userID, requestID string) error {
	return s.resolve(ctx, userID, requestID, domainsocial.RequestDeclined)
}

func (s *Service) resolve(ctx context.Context, userID, requestID string, state domainsocial.RequestState) error {
	if s.Store == nil {
		return ErrNotConfigured
	}
	req, err := s.Store.RequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.ToID != userID || req.State != domainsocial.RequestPending {
		return domainsocial.ErrRequestNotFound
	}
	req.State = state
	req.UpdatedAt = time.Now().UTC()
	if err := s.Store.SaveRequest(ctx, *req); err != nil {
		return err
	}
	if state == domainsocial.RequestAccepted {
		return s.Store.AddFriendship(ctx, req.FromID, req.ToID)
	}
	return nil
}

// Incoming lists the user's open friend requests.
func (s *Service) Incoming(ctx context.Context, userID string) ([]domainsocial.FriendRequest, error) {
	if s.Store == nil {
		return nil, ErrNotConfigured
	}
	return s.Store.ListIncoming(ctx, userID)
}

// Friends lists the user's friend ids.
func (s *Service) Friends(ctx context.Context, userID string) ([]string, error) {
	if s.Store == nil {
		return nil, ErrNotConfigured
	}
	return s.Store.ListFriends(ctx, userID)
}
