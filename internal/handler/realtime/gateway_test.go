package realtime_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/scatty/backend/internal/analysis/emotion"
	"github.com/zhouzirui/scatty/backend/internal/config"
	"github.com/zhouzirui/scatty/backend/internal/handler/realtime"
	"github.com/zhouzirui/scatty/backend/internal/model/protocol"
	"github.com/zhouzirui/scatty/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/scatty/backend/internal/service/chat"
	"github.com/zhouzirui/scatty/backend/internal/service/conversation"
)

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, req ai.Request) (ai.Reply, error) {
	return ai.Reply{Text: "echo: " + req.Text, Emotion: emotion.Default()}, nil
}

type testServer struct {
	url   string
	hub   *realtime.Hub
	store *chatservice.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := chatservice.NewStore(time.Hour, zerolog.Nop())
	orch := conversation.New(store, echoGenerator{}, config.ConversationConfig{HistoryLimit: 10, MaxAttempts: 1}, zerolog.Nop())
	hub := realtime.NewHub()
	gateway := realtime.NewGateway(hub, orch, nil, zerolog.Nop())

	r := chi.NewRouter()
	gateway.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		orch.Close()
	})

	return &testServer{
		url:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		hub:   hub,
		store: store,
	}
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, ev protocol.ClientEvent) {
	t.Helper()
	frame, err := protocol.EncodeClient(ev, time.Now())
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func read(t *testing.T, conn *websocket.Conn) protocol.ServerEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := protocol.DecodeServer(raw)
	require.NoError(t, err)
	return ev
}

func readState(t *testing.T, conn *websocket.Conn) protocol.State {
	t.Helper()
	update, ok := read(t, conn).(protocol.StateUpdate)
	require.True(t, ok)
	return update.State
}

func TestHandshakeAndTranscriptTurn(t *testing.T) {
	srv := newTestServer(t)
	conn := srv.dial(t)

	send(t, conn, protocol.SessionStart{SessionID: "s1"})
	assert.Equal(t, protocol.SessionStarted{SessionID: "s1"}, read(t, conn))
	assert.Equal(t, protocol.StateIdle, readState(t, conn))
	assert.True(t, srv.hub.Connected("s1"))

	send(t, conn, protocol.Transcript{Text: "Hello", IsFinal: true, SessionID: "s1"})
	assert.Equal(t, protocol.StateThinking, readState(t, conn))
	assert.Equal(t, protocol.StateSpeaking, readState(t, conn))
	complete, ok := read(t, conn).(protocol.ResponseComplete)
	require.True(t, ok)
	assert.Equal(t, "echo: Hello", complete.FullText)
	assert.Equal(t, emotion.Neutral, complete.Emotion.Emotion)
	assert.Equal(t, protocol.StateIdle, readState(t, conn))
}

func TestEventsBeforeHandshakeAreRejected(t *testing.T) {
	srv := newTestServer(t)
	conn := srv.dial(t)

	send(t, conn, protocol.Transcript{Text: "Hello", IsFinal: true, SessionID: "s1"})

	errEvent, ok := read(t, conn).(protocol.Error)
	require.True(t, ok)
	assert.Equal(t, protocol.CodeSessionRequired, errEvent.Code)
	assert.Empty(t, srv.store.History(context.Background(), "s1"))
}

func TestSessionMismatchIsRejected(t *testing.T) {
	srv := newTestServer(t)
	conn := srv.dial(t)
	send(t, conn, protocol.SessionStart{SessionID: "s1"})
	read(t, conn)
	read(t, conn)

	send(t, conn, protocol.Transcript{Text: "Hello", IsFinal: true, SessionID: "other"})

	errEvent, ok := read(t, conn).(protocol.Error)
	require.True(t, ok)
	assert.Equal(t, protocol.CodeSessionMismatch, errEvent.Code)
}

func TestMalformedFramesAreReported(t *testing.T) {
	srv := newTestServer(t)
	conn := srv.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"dance","data":{}}`)))
	errEvent, ok := read(t, conn).(protocol.Error)
	require.True(t, ok)
	assert.Equal(t, protocol.CodeUnknownEvent, errEvent.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	errEvent, ok = read(t, conn).(protocol.Error)
	require.True(t, ok)
	assert.Equal(t, protocol.CodeInvalidPayload, errEvent.Code)
}

func TestEventsOnlyReachTheirSession(t *testing.T) {
	srv := newTestServer(t)
	a := srv.dial(t)
	b := srv.dial(t)

	send(t, a, protocol.SessionStart{SessionID: "a"})
	read(t, a)
	read(t, a)
	send(t, b, protocol.SessionStart{SessionID: "b"})
	read(t, b)
	read(t, b)

	send(t, a, protocol.Transcript{Text: "for a", IsFinal: true, SessionID: "a"})
	for i := 0; i < 4; i++ {
		assert.Equal(t, "a", read(t, a).Session())
	}

	send(t, b, protocol.Transcript{Text: "for b", IsFinal: true, SessionID: "b"})
	first := read(t, b)
	assert.Equal(t, protocol.StateUpdate{State: protocol.StateThinking, SessionID: "b"}, first)
}

func TestDisconnectKeepsSession(t *testing.T) {
	srv := newTestServer(t)
	conn := srv.dial(t)
	send(t, conn, protocol.SessionStart{SessionID: "s1"})
	read(t, conn)
	read(t, conn)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return !srv.hub.Connected("s1") }, 2*time.Second, 10*time.Millisecond)
	_, ok := srv.store.Get(context.Background(), "s1")
	assert.True(t, ok)
}

func TestSessionEndUnbindsConnection(t *testing.T) {
	srv := newTestServer(t)
	conn := srv.dial(t)
	send(t, conn, protocol.SessionStart{SessionID: "s1"})
	read(t, conn)
	read(t, conn)

	send(t, conn, protocol.SessionEnd{SessionID: "s1"})
	send(t, conn, protocol.SessionEnd{SessionID: "s1"})

	errEvent, ok := read(t, conn).(protocol.Error)
	require.True(t, ok)
	assert.Equal(t, protocol.CodeSessionRequired, errEvent.Code)
	assert.False(t, srv.hub.Connected("s1"))
	require.Eventually(t, func() bool {
		_, ok := srv.store.Get(context.Background(), "s1")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNonFinalTranscriptIsDroppedBeforeHandshake(t *testing.T) {
	srv := newTestServer(t)
	conn := srv.dial(t)

	send(t, conn, protocol.Transcript{Text: "hel", IsFinal: false, SessionID: "s1"})
	send(t, conn, protocol.Transcript{Text: "hello", IsFinal: false, SessionID: "other"})
	send(t, conn, protocol.SessionStart{SessionID: "s1"})

	assert.Equal(t, protocol.SessionStarted{SessionID: "s1"}, read(t, conn))
	assert.Equal(t, protocol.StateIdle, readState(t, conn))
	assert.Empty(t, srv.store.History(context.Background(), "s1"))
}
