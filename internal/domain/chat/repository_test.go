package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mapin/internal/domain/chat"
	"mapin/internal/infra/storage/memory"
)

const waitFor = 2 * time.Second

type emittedEvent struct {
	Name      string
	Aggregate string
}

type captureSink struct {
	events []emittedEvent
}

func (s *captureSink) Emit(_ context.Context, name, aggregate string, _ any) error {
	s.events = append(s.events, emittedEvent{Name: name, Aggregate: aggregate})
	return nil
}

type failingSink struct{}

func (failingSink) Emit(context.Context, string, string, any) error {
	return errors.New("outbox unavailable")
}

func newConversationRepo(t *testing.T) (*chat.ConversationRepository, *memory.ChatStore, *captureSink) {
	t.Helper()
	store := memory.NewChatStore()
	sink := &captureSink{}
	return &chat.ConversationRepository{Store: store, Events: sink}, store, sink
}

func newMessageRepo(t *testing.T, store *memory.ChatStore) (*chat.MessageRepository, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	// keep fake timestamps ahead of conversation CreatedAt (real clock) so
	// ordering by last activity is deterministic
	base := time.Now().UTC().Truncate(time.Second).Add(time.Hour)
	calls := 0
	repo := &chat.MessageRepository{
		Store:  store,
		Events: sink,
		Now: func() time.Time {
			calls++
			return base.Add(time.Duration(calls) * time.Second)
		},
	}
	return repo, sink
}

func recvConversations(t *testing.T, ch <-chan []chat.Conversation) []chat.Conversation {
	t.Helper()
	select {
	case list, ok := <-ch:
		if !ok {
			t.Fatal("observation channel closed unexpectedly")
		}
		return list
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for conversation emission")
	}
	return nil
}

func recvPage(t *testing.T, ch <-chan chat.MessagePage) chat.MessagePage {
	t.Helper()
	select {
	case page, ok := <-ch:
		if !ok {
			t.Fatal("observation channel closed unexpectedly")
		}
		return page
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for message emission")
	}
	return chat.MessagePage{}
}

func TestObserveConversationsRequiresViewer(t *testing.T) {
	repo, _, _ := newConversationRepo(t)
	if _, err := repo.ObserveConversations(context.Background(), "  "); !errors.Is(err, chat.ErrUnauthenticated) {
		t.Fatalf("got %v, want ErrUnauthenticated", err)
	}
}

func TestObserveConversationsEmitsOnChange(t *testing.T) {
	repo, _, _ := newConversationRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := repo.ObserveConversations(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if initial := recvConversations(t, updates); len(initial) != 0 {
		t.Fatalf("expected empty initial list, got %d", len(initial))
	}

	created, err := repo.AddConversation(ctx, "alice", chat.Conversation{
		ParticipantIDs: []string{"bob"},
		Participants: []chat.Participant{
			{ID: "alice", Name: "Alice"},
			{ID: "bob", Name: "Bob", PhotoURL: "bob.jpg"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	list := recvConversations(t, updates)
	if len(list) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(list))
	}
	if list[0].ID != created.ID {
		t.Fatalf("got id %q, want %q", list[0].ID, created.ID)
	}
	// two-party thread carries the counterpart identity for the viewer
	if list[0].Name != "Bob" || list[0].PhotoURL != "bob.jpg" {
		t.Fatalf("viewer projection missing: %q %q", list[0].Name, list[0].PhotoURL)
	}

	cancel()
	for range updates {
	}
}

func TestObserveConversationsOrdering(t *testing.T) {
	repo, store, _ := newConversationRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := repo.AddConversation(ctx, "alice", chat.Conversation{ParticipantIDs: []string{"bob"}})
	if err != nil {
		t.Fatal(err)
	}
	second, err := repo.AddConversation(ctx, "alice", chat.Conversation{ParticipantIDs: []string{"carol"}})
	if err != nil {
		t.Fatal(err)
	}

	messages, _ := newMessageRepo(t, store)
	if _, err := messages.SendMessage(ctx, first.ID, "alice", "bump"); err != nil {
		t.Fatal(err)
	}

	updates, err := repo.ObserveConversations(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	list := recvConversations(t, updates)
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
	if list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("expected most recent activity first, got %q then %q", list[0].ID, list[1].ID)
	}
	if list[0].LastMessage != "bump" {
		t.Fatalf("preview not denormalized: %q", list[0].LastMessage)
	}
}

func TestAddConversationIdempotent(t *testing.T) {
	repo, _, sink := newConversationRepo(t)
	ctx := context.Background()

	first, err := repo.AddConversation(ctx, "alice", chat.Conversation{ParticipantIDs: []string{"bob"}})
	if err != nil {
		t.Fatal(err)
	}
	// same participant set in a different order converges on the same thread
	second, err := repo.AddConversation(ctx, "bob", chat.Conversation{ParticipantIDs: []string{"alice"}})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("ids diverged: %q vs %q", first.ID, second.ID)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected a single created event, got %d", len(sink.events))
	}
	if sink.events[0].Name != "chat.conversation_created" {
		t.Fatalf("unexpected event %q", sink.events[0].Name)
	}
}

func TestAddConversationDuplicateReturnsStored(t *testing.T) {
	repo, _, _ := newConversationRepo(t)
	ctx := context.Background()

	first, err := repo.AddConversation(ctx, "alice", chat.Conversation{
		ParticipantIDs: []string{"bob"},
		Participants: []chat.Participant{
			{ID: "alice", Name: "Alice"},
			{ID: "bob", Name: "Bob"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	// bob re-creates without snapshots; the stored thread wins
	second, err := repo.AddConversation(ctx, "bob", chat.Conversation{ParticipantIDs: []string{"alice"}})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Fatalf("ids diverged: %q vs %q", second.ID, first.ID)
	}
	if len(second.Participants) != 2 {
		t.Fatalf("stored snapshots dropped: %+v", second.Participants)
	}
	names := map[string]bool{}
	for _, p := range second.Participants {
		names[p.Name] = true
	}
	if !names["Alice"] || !names["Bob"] {
		t.Fatalf("stored snapshots replaced by the caller's draft: %+v", second.Participants)
	}
}

func TestAddConversationSurfacesEmitFailure(t *testing.T) {
	repo := &chat.ConversationRepository{Store: memory.NewChatStore(), Events: failingSink{}}
	if _, err := repo.AddConversation(context.Background(), "alice", chat.Conversation{ParticipantIDs: []string{"bob"}}); err == nil {
		t.Fatal("emit failure swallowed")
	}
}

func TestAddConversationEnsuresCreator(t *testing.T) {
	repo, _, _ := newConversationRepo(t)
	created, err := repo.AddConversation(context.Background(), "alice", chat.Conversation{ParticipantIDs: []string{"bob"}})
	if err != nil {
		t.Fatal(err)
	}
	if !created.HasParticipant("alice") {
		t.Fatal("creator missing from participant ids")
	}
}

func TestLeaveConversationRemovesBothLists(t *testing.T) {
	repo, _, _ := newConversationRepo(t)
	ctx := context.Background()

	created, err := repo.AddConversation(ctx, "alice", chat.Conversation{
		ParticipantIDs: []string{"bob"},
		Participants: []chat.Participant{
			{ID: "alice", Name: "Alice"},
			{ID: "bob", Name: "Bob"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.LeaveConversation(ctx, "alice", created.ID); err != nil {
		t.Fatal(err)
	}
	got := repo.ConversationByID(ctx, created.ID)
	if got == nil {
		t.Fatal("conversation vanished")
	}
	if got.HasParticipant("alice") {
		t.Fatal("leaver still in participant ids")
	}
	for _, p := range got.Participants {
		if p.ID == "alice" {
			t.Fatal("leaver still in participant snapshots")
		}
	}
}

func TestConversationExists(t *testing.T) {
	repo, _, _ := newConversationRepo(t)
	ctx := context.Background()
	if repo.ConversationExists(ctx, "nope") {
		t.Fatal("missing conversation reported present")
	}
	created, err := repo.AddConversation(ctx, "alice", chat.Conversation{ParticipantIDs: []string{"bob"}})
	if err != nil {
		t.Fatal(err)
	}
	if !repo.ConversationExists(ctx, created.ID) {
		t.Fatal("created conversation reported absent")
	}
}

func TestSendMessageBlankIsNoop(t *testing.T) {
	convRepo, store, _ := newConversationRepo(t)
	ctx := context.Background()
	created, err := convRepo.AddConversation(ctx, "alice", chat.Conversation{ParticipantIDs: []string{"bob"}})
	if err != nil {
		t.Fatal(err)
	}
	repo, sink := newMessageRepo(t, store)

	msg, err := repo.SendMessage(ctx, created.ID, "alice", "   ")
	if err != nil {
		t.Fatal(err)
	}
	if msg != nil {
		t.Fatalf("blank text should be dropped, got %+v", msg)
	}
	if len(sink.events) != 0 {
		t.Fatal("blank send emitted an event")
	}

	page, err := repo.LoadMoreMessages(ctx, "alice", created.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 0 {
		t.Fatalf("blank send persisted a message: %d", len(page.Messages))
	}
}

func TestSendMessageAssignsServerTimestamp(t *testing.T) {
	convRepo, store, _ := newConversationRepo(t)
	ctx := context.Background()
	created, err := convRepo.AddConversation(ctx, "alice", chat.Conversation{ParticipantIDs: []string{"bob"}})
	if err != nil {
		t.Fatal(err)
	}
	repo, sink := newMessageRepo(t, store)

	msg, err := repo.SendMessage(ctx, created.ID, "alice", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if msg == nil || msg.ID == "" || msg.SentAt.IsZero() {
		t.Fatalf("incomplete message: %+v", msg)
	}
	if len(sink.events) != 1 || sink.events[0].Name != "chat.message_sent" {
		t.Fatalf("unexpected events: %+v", sink.events)
	}

	conv := convRepo.ConversationByID(ctx, created.ID)
	if conv.LastMessage != "hello" || !conv.LastMessageAt.Equal(msg.SentAt) {
		t.Fatalf("preview not updated atomically: %q at %v", conv.LastMessage, conv.LastMessageAt)
	}
}

func TestSendMessageSurfacesEmitFailure(t *testing.T) {
	convRepo, store, _ := newConversationRepo(t)
	ctx := context.Background()
	created, err := convRepo.AddConversation(ctx, "alice", chat.Conversation{ParticipantIDs: []string{"bob"}})
	if err != nil {
		t.Fatal(err)
	}
	repo := &chat.MessageRepository{Store: store, Events: failingSink{}}

	// the message commits before the outbox append, so the caller must see
	// the failure instead of a silently lost fan-out
	if _, err := repo.SendMessage(ctx, created.ID, "alice", "hello"); err == nil {
		t.Fatal("emit failure swallowed")
	}
	page, err := (&chat.MessageRepository{Store: store}).LoadMoreMessages(ctx, "alice", created.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 1 {
		t.Fatalf("message not durable after emit failure: %d", len(page.Messages))
	}
}

func TestSendMessageUnknownConversation(t *testing.T) {
	repo, _ := newMessageRepo(t, memory.NewChatStore())
	if _, err := repo.SendMessage(context.Background(), "nope", "alice", "hi"); !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestLoadMoreMessagesPaginationWalk(t *testing.T) {
	convRepo, store, _ := newConversationRepo(t)
	ctx := context.Background()
	created, err := convRepo.AddConversation(ctx, "alice", chat.Conversation{ParticipantIDs: []string{"bob"}})
	if err != nil {
		t.Fatal(err)
	}
	repo, _ := newMessageRepo(t, store)

	total := 2*chat.PageSize + 20
	for i := 0; i < total; i++ {
		sender := "alice"
		if i%2 == 1 {
			sender = "bob"
		}
		if _, err := repo.SendMessage(ctx, created.ID, sender, "msg"); err != nil {
			t.Fatal(err)
		}
	}

	seen := make(map[string]bool)
	cursor := ""
	var pages []chat.MessagePage
	for {
		page, err := repo.LoadMoreMessages(ctx, "alice", created.ID, cursor)
		if err != nil {
			t.Fatal(err)
		}
		pages = append(pages, page)
		for i, msg := range page.Messages {
			if seen[msg.ID] {
				t.Fatalf("message %q delivered twice", msg.ID)
			}
			seen[msg.ID] = true
			if i > 0 && page.Messages[i-1].SentAt.After(msg.SentAt) {
				t.Fatal("page not chronological")
			}
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
		if len(pages) > 10 {
			t.Fatal("pagination did not terminate")
		}
	}

	if len(seen) != total {
		t.Fatalf("walk delivered %d messages, want %d", len(seen), total)
	}
	if got := []int{len(pages[0].Messages), len(pages[1].Messages), len(pages[2].Messages)}; got[0] != chat.PageSize || got[1] != chat.PageSize || got[2] != 20 {
		t.Fatalf("unexpected page sizes: %v", got)
	}
	// pages walk backwards through history
	lastOfSecond := pages[1].Messages[len(pages[1].Messages)-1]
	firstOfFirst := pages[0].Messages[0]
	if !lastOfSecond.SentAt.Before(firstOfFirst.SentAt) {
		t.Fatal("older page not strictly before newer page")
	}
}

func TestLoadMoreMessagesBadCursor(t *testing.T) {
	repo, _ := newMessageRepo(t, memory.NewChatStore())
	if _, err := repo.LoadMoreMessages(context.Background(), "alice", "c1", "not-a-cursor"); !errors.Is(err, chat.ErrBadCursor) {
		t.Fatalf("got %v, want ErrBadCursor", err)
	}
}

func TestObserveMessagesDeliversNewestPage(t *testing.T) {
	convRepo, store, _ := newConversationRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	created, err := convRepo.AddConversation(ctx, "alice", chat.Conversation{ParticipantIDs: []string{"bob"}})
	if err != nil {
		t.Fatal(err)
	}
	repo, _ := newMessageRepo(t, store)

	pages, err := repo.ObserveMessages(ctx, "alice", created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if initial := recvPage(t, pages); len(initial.Messages) != 0 {
		t.Fatalf("expected empty initial page, got %d", len(initial.Messages))
	}

	if _, err := repo.SendMessage(ctx, created.ID, "bob", "hey"); err != nil {
		t.Fatal(err)
	}
	page := recvPage(t, pages)
	if len(page.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(page.Messages))
	}
	if page.Messages[0].Mine {
		t.Fatal("bob's message marked mine for alice")
	}

	if _, err := repo.SendMessage(ctx, created.ID, "alice", "hi back"); err != nil {
		t.Fatal(err)
	}
	page = recvPage(t, pages)
	if len(page.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(page.Messages))
	}
	if !page.Messages[1].Mine {
		t.Fatal("alice's message not marked mine")
	}
	if page.Messages[0].Text != "hey" || page.Messages[1].Text != "hi back" {
		t.Fatalf("page not chronological: %q then %q", page.Messages[0].Text, page.Messages[1].Text)
	}
}

func TestObserveMessagesClosesOnCancel(t *testing.T) {
	convRepo, store, _ := newConversationRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	created, err := convRepo.AddConversation(ctx, "alice", chat.Conversation{ParticipantIDs: []string{"bob"}})
	if err != nil {
		t.Fatal(err)
	}
	repo, _ := newMessageRepo(t, store)
	pages, err := repo.ObserveMessages(ctx, "alice", created.ID)
	if err != nil {
		t.Fatal(err)
	}
	recvPage(t, pages)
	cancel()

	deadline := time.After(waitFor)
	for {
		select {
		case _, ok := <-pages:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}
