package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/scatty/backend/internal/model/chat"
	"github.com/zhouzirui/scatty/backend/internal/model/protocol"
	chatservice "github.com/zhouzirui/scatty/backend/internal/service/chat"
)

type fakeConversations struct {
	states map[string]protocol.State
	ended  []string
	store  *chatservice.Store
}

func (f *fakeConversations) State(sessionID string) protocol.State {
	if state, ok := f.states[sessionID]; ok {
		return state
	}
	return protocol.StateIdle
}

func (f *fakeConversations) EndSession(sessionID string) {
	f.ended = append(f.ended, sessionID)
	f.store.Delete(context.Background(), sessionID)
}

type fakePresence map[string]bool

func (p fakePresence) Connected(sessionID string) bool { return p[sessionID] }

func setupRouter() (*chi.Mux, *chatservice.Store, *fakeConversations) {
	store := chatservice.NewStore(time.Hour, zerolog.Nop())
	conversations := &fakeConversations{states: map[string]protocol.State{}, store: store}
	handler := New(store, conversations, fakePresence{"s1": true})

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, store, conversations
}

func TestStatusReportsStateAndConnection(t *testing.T) {
	r, store, conversations := setupRouter()
	store.GetOrCreate(context.Background(), "s1")
	conversations.states["s1"] = protocol.StateThinking

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/sessions/s1", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var status protocol.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := protocol.Status{State: protocol.StateThinking, SessionID: "s1", Connected: true}
	if status != want {
		t.Fatalf("expected %+v, got %+v", want, status)
	}
}

func TestStatusUnknownSession(t *testing.T) {
	r, _, _ := setupRouter()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/sessions/missing", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestMessagesInOrder(t *testing.T) {
	r, store, _ := setupRouter()
	ctx := context.Background()
	store.AddMessage(ctx, "s1", chat.RoleUser, "hi", false)
	store.AddMessage(ctx, "s1", chat.RoleAssistant, "hello!", false)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/sessions/s1/messages", nil))

	var body messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Messages) != 2 || body.Messages[0].Content != "hi" || body.Messages[1].Role != chat.RoleAssistant {
		t.Fatalf("unexpected messages: %+v", body.Messages)
	}
}

func TestMessagesUnknownSessionIsEmpty(t *testing.T) {
	r, _, _ := setupRouter()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/sessions/ghost/messages", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if string(raw["messages"]) != "[]" {
		t.Fatalf("expected empty list, got %s", raw["messages"])
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	r, store, conversations := setupRouter()
	store.GetOrCreate(context.Background(), "s1")

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/sessions/s1", nil))
		if resp.Code != http.StatusNoContent {
			t.Fatalf("attempt %d: expected 204, got %d", i, resp.Code)
		}
	}

	if _, ok := store.Get(context.Background(), "s1"); ok {
		t.Fatal("session should be gone")
	}
	if len(conversations.ended) != 2 {
		t.Fatalf("expected two end requests, got %d", len(conversations.ended))
	}
}
