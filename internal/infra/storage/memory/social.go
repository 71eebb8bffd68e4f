package memory

import (
	"context"
	"sort"
	"sync"

	domainsocial "mapin/internal/domain/social"
)

// SocialStore keeps friend requests and friendships in memory.
type SocialStore struct {
	mu       sync.RWMutex
	requests map[string]domainsocial.FriendRequest
	friends  map[string]map[string]struct{}
}

func NewSocialStore() *SocialStore {
	return &SocialStore{
		requests: make(map[string]domainsocial.FriendRequest),
		friends:  make(map[string]map[string]struct{}),
	}
}

func (s *SocialStore) SaveRequest(ctx context.Context, req domainsocial.FriendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return nil
}

func (s *SocialStore) RequestByID(ctx context.Context, id string) (*domainsocial.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, domainsocial.ErrRequestNotFound
	}
	out := req
	return &out, nil
}

func (s *SocialStore) PendingRequestBetween(ctx context.Context, a, b string) (*domainsocial.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.State != domainsocial.RequestPending {
			continue
		}
		if (req.FromID == a && req.ToID == b) || (req.FromID == b && req.ToID == a) {
			out := req
			return &out, nil
		}
	}
	return nil, domainsocial.ErrRequestNotFound
}

func (s *SocialStore) ListIncoming(ctx context.Context, userID string) ([]domainsocial.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domainsocial.FriendRequest, 0)
	for _, req := range s.requests {
		if req.ToID == userID && req.State == domainsocial.RequestPending {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *SocialStore) AddFriendship(ctx context.Context, a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addEdgeLocked(a, b)
	s.addEdgeLocked(b, a)
	return nil
}

func (s *SocialStore) addEdgeLocked(from, to string) {
	set, ok := s.friends[from]
	if !ok {
		set = make(map[string]struct{})
		s.friends[from] = set
	}
	set[to] = struct{}{}
}

func (s *SocialStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.friends[a][b]
	return ok, nil
}

func (s *SocialStore) ListFriends(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.friends[userID]))
	for id := range s.friends[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

var _ domainsocial.Store = (*SocialStore)(nil)
