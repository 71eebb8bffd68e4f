package memory

import (
	"context"
	"sort"
	"sync"

	"mapin/internal/domain/chat"
)

// ChatStore keeps conversations and messages in memory with subscriber
// notification, mirroring the Mongo store's contract. Used by tests and as
// the fallback when no Mongo URI is configured.
type ChatStore struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	messages      map[string][]chat.Message // sorted oldest-first
	convSubs      map[chan struct{}]struct{}
	msgSubs       map[string]map[chan struct{}]struct{}
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.Message),
		convSubs:      make(map[chan struct{}]struct{}),
		msgSubs:       make(map[string]map[chan struct{}]struct{}),
	}
}

func (s *ChatStore) CreateConversation(ctx context.Context, conv chat.Conversation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conv.ID]; ok {
		return false, nil
	}
	s.conversations[conv.ID] = cloneConversation(conv)
	s.notifyConversationsLocked()
	return true, nil
}

func (s *ChatStore) ConversationByID(ctx context.Context, id string) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	out := cloneConversation(conv)
	return &out, nil
}

func (s *ChatStore) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, cloneConversation(conv))
		}
	}
	return out, nil
}

func (s *ChatStore) JoinConversation(ctx context.Context, id string, p chat.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return chat.ErrNotFound
	}
	if !conv.HasParticipant(p.ID) {
		conv.ParticipantIDs = append(conv.ParticipantIDs, p.ID)
	}
	found := false
	for _, existing := range conv.Participants {
		if existing.ID == p.ID {
			found = true
			break
		}
	}
	if !found {
		conv.Participants = append(conv.Participants, p)
	}
	s.conversations[id] = conv
	s.notifyConversationsLocked()
	return nil
}

func (s *ChatStore) LeaveConversation(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return chat.ErrNotFound
	}
	ids := conv.ParticipantIDs[:0:0]
	for _, pid := range conv.ParticipantIDs {
		if pid != userID {
			ids = append(ids, pid)
		}
	}
	participants := conv.Participants[:0:0]
	for _, p := range conv.Participants {
		if p.ID != userID {
			participants = append(participants, p)
		}
	}
	conv.ParticipantIDs = ids
	conv.Participants = participants
	s.conversations[id] = conv
	s.notifyConversationsLocked()
	return nil
}

func (s *ChatStore) AppendMessage(ctx context.Context, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return chat.ErrNotFound
	}
	list := append(s.messages[msg.ConversationID], msg)
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].SentAt.Equal(list[j].SentAt) {
			return list[i].SentAt.Before(list[j].SentAt)
		}
		return list[i].ID < list[j].ID
	})
	s.messages[msg.ConversationID] = list

	conv.LastMessage = chat.TrimSnippet(msg.Text, chat.SnippetMax)
	conv.LastMessageAt = msg.SentAt
	s.conversations[msg.ConversationID] = conv

	s.notifyConversationsLocked()
	s.notifyMessagesLocked(msg.ConversationID)
	return nil
}

func (s *ChatStore) LatestMessages(ctx context.Context, conversationID string, limit int) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.messages[conversationID]
	return newestFirst(list, len(list), limit), nil
}

func (s *ChatStore) MessagesBefore(ctx context.Context, conversationID string, before chat.Cursor, limit int) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.messages[conversationID]
	// boundary: index of the first message at or after the cursor
	end := len(list)
	for i, msg := range list {
		older := msg.SentAt.Before(before.SentAt) ||
			(msg.SentAt.Equal(before.SentAt) && msg.ID < before.MessageID)
		if !older {
			end = i
			break
		}
	}
	return newestFirst(list, end, limit), nil
}

// newestFirst returns up to limit messages ending at index end (exclusive),
// reversed to newest-first order.
func newestFirst(list []chat.Message, end, limit int) []chat.Message {
	if limit <= 0 {
		limit = chat.PageSize
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]chat.Message, 0, end-start)
	for i := end - 1; i >= start; i-- {
		out = append(out, list[i])
	}
	return out
}

func (s *ChatStore) WatchConversations(ctx context.Context, userID string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.convSubs[ch] = struct{}{}
	s.mu.Unlock()
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.convSubs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

func (s *ChatStore) WatchMessages(ctx context.Context, conversationID string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	subs, ok := s.msgSubs[conversationID]
	if !ok {
		subs = make(map[chan struct{}]struct{})
		s.msgSubs[conversationID] = subs
	}
	subs[ch] = struct{}{}
	s.mu.Unlock()
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if subs, ok := s.msgSubs[conversationID]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(s.msgSubs, conversationID)
			}
		}
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

func (s *ChatStore) notifyConversationsLocked() {
	for ch := range s.convSubs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *ChatStore) notifyMessagesLocked(conversationID string) {
	for ch := range s.msgSubs[conversationID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func cloneConversation(c chat.Conversation) chat.Conversation {
	c.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	c.Participants = append([]chat.Participant(nil), c.Participants...)
	return c
}

var _ chat.Store = (*ChatStore)(nil)
