package ginserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mapin/internal/app/dto"
	authsvc "mapin/internal/app/services/auth"
	socialsvc "mapin/internal/app/services/social"
	"mapin/internal/domain/chat"
	"mapin/internal/infra/config"
	ginserver "mapin/internal/infra/http/gin"
	"mapin/internal/infra/obs"
	"mapin/internal/infra/security"
	"mapin/internal/infra/storage/memory"
)

type recordedEvent struct {
	Name      string
	Aggregate string
}

type captureSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *captureSink) Emit(_ context.Context, name, aggregate string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{Name: name, Aggregate: aggregate})
	return nil
}

func (s *captureSink) recorded() []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedEvent(nil), s.events...)
}

func (e *testEnv) joinRecords(eventID string) int {
	count := 0
	for _, rec := range e.events.recorded() {
		if rec.Name == "event.participant_joined" && rec.Aggregate == eventID {
			count++
		}
	}
	return count
}

type testEnv struct {
	server *httptest.Server
	events *captureSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sink := &captureSink{}
	chatStore := memory.NewChatStore()
	authService := &authsvc.Service{
		Users:      memory.NewUserRepository(),
		Sessions:   memory.NewSessionStore(),
		Passwords:  security.BcryptHasher{Cost: 4},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: time.Hour,
	}
	socialService := &socialsvc.Service{Store: memory.NewSocialStore()}
	conversations := &chat.ConversationRepository{Store: chatStore}
	messages := &chat.MessageRepository{Store: chatStore}

	handlers := ginserver.Handlers{
		Auth:           ginserver.AuthHandler{Service: authService},
		Chat:           ginserver.ChatHandler{Conversations: conversations, Messages: messages},
		Event:          ginserver.EventHandler{Store: memory.NewEventStore(), Events: sink},
		Media:          ginserver.MediaHandler{},
		Link:           ginserver.LinkHandler{},
		Social:         ginserver.SocialHandler{Service: socialService},
		WS:             ginserver.WSHandler{Conversations: conversations, Messages: messages},
		AuthMiddleware: ginserver.AuthMiddleware{Service: authService}.Handle,
	}
	httpServer := ginserver.NewServer(config.Config{Env: "test", HTTPAddr: ":0"}, obs.Middleware{}, obs.HealthHandlers{}, handlers)

	ts := httptest.NewServer(httpServer.Handler)
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, events: sink}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, raw
}

func (e *testEnv) registerUser(t *testing.T, email, name string) (token, id string) {
	t.Helper()
	resp, raw := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"name":     name,
		"password": "longenough",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", email, resp.StatusCode, raw)
	}
	var out dto.AuthResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	return out.Token, out.User.ID
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/livez", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("livez status %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/readyz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status %d", resp.StatusCode)
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice@example.com", "Alice")

	resp, raw := env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", resp.StatusCode, raw)
	}
	me := decode[dto.User](t, raw)
	if me.Email != "alice@example.com" {
		t.Fatalf("me email %q", me.Email)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous me status %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout status %d", resp.StatusCode)
	}
}

func TestConversationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, aliceID := env.registerUser(t, "alice@example.com", "Alice")
	bobToken, bobID := env.registerUser(t, "bob@example.com", "Bob")
	strangerToken, _ := env.registerUser(t, "mallory@example.com", "Mallory")

	resp, raw := env.do(t, http.MethodPost, "/api/v1/conversations", aliceToken, dto.CreateConversationRequest{
		ParticipantIDs: []string{bobID},
		Participants: []dto.Participant{
			{ID: aliceID, Name: "Alice"},
			{ID: bobID, Name: "Bob"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status %d: %s", resp.StatusCode, raw)
	}
	conv := decode[dto.Conversation](t, raw)
	if conv.ID == "" || len(conv.ParticipantIDs) != 2 {
		t.Fatalf("conversation incomplete: %+v", conv)
	}
	// two-party projection for the creator
	if conv.Name != "Bob" {
		t.Fatalf("viewer name %q, want Bob", conv.Name)
	}

	// the same participant set resolves to the same conversation
	resp, raw = env.do(t, http.MethodPost, "/api/v1/conversations", bobToken, dto.CreateConversationRequest{
		ParticipantIDs: []string{aliceID},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("re-create status %d", resp.StatusCode)
	}
	if again := decode[dto.Conversation](t, raw); again.ID != conv.ID {
		t.Fatalf("ids diverged: %q vs %q", again.ID, conv.ID)
	}

	// send a message
	resp, raw = env.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", aliceToken, dto.SendMessageRequest{Text: "hello bob"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send status %d: %s", resp.StatusCode, raw)
	}
	sent := decode[dto.ChatMessage](t, raw)
	if !sent.Mine || sent.SentAt.IsZero() {
		t.Fatalf("sent message incomplete: %+v", sent)
	}

	// blank text is dropped
	resp, _ = env.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", aliceToken, dto.SendMessageRequest{Text: "   "})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("blank send status %d", resp.StatusCode)
	}

	// bob reads the thread
	resp, raw = env.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list messages status %d", resp.StatusCode)
	}
	page := decode[dto.ChatMessageList](t, raw)
	if len(page.Items) != 1 || page.Items[0].Mine {
		t.Fatalf("bob's view wrong: %+v", page.Items)
	}

	// non-participants are kept out
	resp, _ = env.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", strangerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger status %d, want 403", resp.StatusCode)
	}

	// conversation list shows the preview
	resp, raw = env.do(t, http.MethodGet, "/api/v1/conversations", bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list conversations status %d", resp.StatusCode)
	}
	list := decode[dto.ConversationList](t, raw)
	if len(list.Items) != 1 || list.Items[0].LastMessage != "hello bob" {
		t.Fatalf("conversation list wrong: %+v", list.Items)
	}

	// leaving revokes access
	resp, _ = env.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/leave", bobToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("leave status %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", bobToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("post-leave status %d, want 403", resp.StatusCode)
	}
}

func TestMessagePaginationOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, _ := env.registerUser(t, "alice@example.com", "Alice")
	_, bobID := env.registerUser(t, "bob@example.com", "Bob")

	resp, raw := env.do(t, http.MethodPost, "/api/v1/conversations", aliceToken, dto.CreateConversationRequest{ParticipantIDs: []string{bobID}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status %d", resp.StatusCode)
	}
	conv := decode[dto.Conversation](t, raw)

	total := chat.PageSize + 7
	for i := 0; i < total; i++ {
		resp, _ := env.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", aliceToken, dto.SendMessageRequest{Text: fmt.Sprintf("msg %d", i)})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("send %d status %d", i, resp.StatusCode)
		}
	}

	resp, raw = env.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", aliceToken, nil)
	first := decode[dto.ChatMessageList](t, raw)
	if len(first.Items) != chat.PageSize || first.NextCursor == "" {
		t.Fatalf("first page: %d items, cursor %q", len(first.Items), first.NextCursor)
	}

	resp, raw = env.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages?cursor="+url.QueryEscape(first.NextCursor), aliceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second page status %d", resp.StatusCode)
	}
	second := decode[dto.ChatMessageList](t, raw)
	if len(second.Items) != 7 || second.NextCursor != "" {
		t.Fatalf("second page: %d items, cursor %q", len(second.Items), second.NextCursor)
	}
	if second.Items[0].Text != "msg 0" {
		t.Fatalf("oldest message %q", second.Items[0].Text)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages?cursor=garbage", aliceToken, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad cursor status %d", resp.StatusCode)
	}
}

func TestEventEndpoints(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, aliceID := env.registerUser(t, "alice@example.com", "Alice")
	bobToken, _ := env.registerUser(t, "bob@example.com", "Bob")
	carolToken, _ := env.registerUser(t, "carol@example.com", "Carol")

	resp, raw := env.do(t, http.MethodPost, "/api/v1/events", aliceToken, dto.CreateEventRequest{
		Title:    "Morning run",
		Location: dto.Location{Lat: 48.8584, Lon: 2.2945},
		Tags:     []string{"run"},
		Capacity: 2,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create event status %d: %s", resp.StatusCode, raw)
	}
	ev := decode[dto.Event](t, raw)
	if ev.OwnerID != aliceID || ev.PinCategory != "sport" {
		t.Fatalf("event wrong: %+v", ev)
	}
	if len(ev.ParticipantIDs) != 1 {
		t.Fatalf("owner not auto-joined: %v", ev.ParticipantIDs)
	}

	// missing title rejected
	resp, _ = env.do(t, http.MethodPost, "/api/v1/events", aliceToken, dto.CreateEventRequest{Title: "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank title status %d", resp.StatusCode)
	}

	// capacity enforcement
	resp, _ = env.do(t, http.MethodPost, "/api/v1/events/"+ev.ID+"/join", bobToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("bob join status %d", resp.StatusCode)
	}
	// a successful join appends the fan-out record
	if got := env.joinRecords(ev.ID); got != 1 {
		t.Fatalf("participant_joined records = %d, want 1", got)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/v1/events/"+ev.ID+"/join", carolToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("full join status %d, want 409", resp.StatusCode)
	}
	// a rejected join must not
	if got := env.joinRecords(ev.ID); got != 1 {
		t.Fatalf("participant_joined records after rejection = %d, want 1", got)
	}

	resp, raw = env.do(t, http.MethodGet, "/api/v1/events/"+ev.ID, aliceToken, nil)
	full := decode[dto.Event](t, raw)
	if full.CapacityState != "full" {
		t.Fatalf("capacity state %q, want full", full.CapacityState)
	}

	// route card
	resp, raw = env.do(t, http.MethodGet, "/api/v1/events/"+ev.ID+"/route?lat=48.8530&lon=2.3499", aliceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("route status %d", resp.StatusCode)
	}
	route := decode[dto.RouteResponse](t, raw)
	if !strings.HasSuffix(route.Distance, "km") || route.DurationSeconds <= 0 {
		t.Fatalf("route wrong: %+v", route)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/v1/events/"+ev.ID+"/route?lat=abc", aliceToken, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad route params status %d", resp.StatusCode)
	}

	// events are publicly listable
	resp, raw = env.do(t, http.MethodGet, "/api/v1/events", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status %d", resp.StatusCode)
	}
	list := decode[dto.EventList](t, raw)
	if len(list.Items) != 1 {
		t.Fatalf("list size %d", len(list.Items))
	}
}

func TestLinkResolve(t *testing.T) {
	env := newTestEnv(t)
	resp, raw := env.do(t, http.MethodGet, "/api/v1/links/resolve?uri=mapin%3A%2F%2Fevents%2Fev-1", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status %d", resp.StatusCode)
	}
	var route struct {
		Screen string `json:"screen"`
		ID     string `json:"id"`
	}
	if err := json.Unmarshal(raw, &route); err != nil {
		t.Fatal(err)
	}
	if route.Screen != "event" || route.ID != "ev-1" {
		t.Fatalf("route = %+v", route)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/v1/links/resolve", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing uri status %d", resp.StatusCode)
	}
}

func TestMediaUploadUnavailable(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice@example.com", "Alice")
	resp, _ := env.do(t, http.MethodPost, "/api/v1/media", token, map[string]string{})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("upload status %d, want 503", resp.StatusCode)
	}
}

func TestFriendEndpoints(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, _ := env.registerUser(t, "alice@example.com", "Alice")
	bobToken, bobID := env.registerUser(t, "bob@example.com", "Bob")

	resp, raw := env.do(t, http.MethodPost, "/api/v1/friends/requests", aliceToken, map[string]string{"to_id": bobID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send request status %d: %s", resp.StatusCode, raw)
	}
	req := decode[dto.FriendRequest](t, raw)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/friends/requests/"+req.ID+"/accept", bobToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("accept status %d", resp.StatusCode)
	}

	resp, raw = env.do(t, http.MethodGet, "/api/v1/friends", aliceToken, nil)
	var friends struct {
		Items []string `json:"items"`
	}
	if err := json.Unmarshal(raw, &friends); err != nil {
		t.Fatal(err)
	}
	if len(friends.Items) != 1 || friends.Items[0] != bobID {
		t.Fatalf("friends = %v", friends.Items)
	}
}

func TestObserveConversationsWebsocket(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, aliceID := env.registerUser(t, "alice@example.com", "Alice")
	_, bobID := env.registerUser(t, "bob@example.com", "Bob")
	_ = aliceID

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/conversations"
	header := http.Header{"Authorization": []string{"Bearer " + aliceToken}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var initial dto.ConversationList
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatal(err)
	}
	if len(initial.Items) != 0 {
		t.Fatalf("initial frame: %+v", initial.Items)
	}

	resp, _ := env.do(t, http.MethodPost, "/api/v1/conversations", aliceToken, dto.CreateConversationRequest{ParticipantIDs: []string{bobID}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var updated dto.ConversationList
	if err := conn.ReadJSON(&updated); err != nil {
		t.Fatal(err)
	}
	if len(updated.Items) != 1 {
		t.Fatalf("update frame: %+v", updated.Items)
	}
}
