package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
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

type cannedGenerator struct{ err error }

func (g cannedGenerator) Generate(context.Context, ai.Request) (ai.Reply, error) {
	if g.err != nil {
		return ai.Reply{}, g.err
	}
	return ai.Reply{Text: "Hi there!", Emotion: emotion.Descriptor{Emotion: emotion.Happy, Intensity: 0.8}}, nil
}

func startServer(t *testing.T, gen ai.Generator) (string, *chatservice.Store) {
	t.Helper()
	store := chatservice.NewStore(time.Hour, zerolog.Nop())
	orch := conversation.New(store, gen, config.ConversationConfig{HistoryLimit: 10, MaxAttempts: 1}, zerolog.Nop())
	r := chi.NewRouter()
	realtime.NewGateway(realtime.NewHub(), orch, nil, zerolog.Nop()).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		orch.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", store
}

func TestProbeTranscript(t *testing.T) {
	url, store := startServer(t, cannedGenerator{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := probe(ctx, options{url: url, sessionID: "probe-1", text: "hello", keep: true}, &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "<- response:complete [happy 0.80] Hi there!")
	assert.Len(t, store.History(context.Background(), "probe-1"), 2)
}

func TestProbeReportsFailure(t *testing.T) {
	url, _ := startServer(t, cannedGenerator{err: ai.Fail("fake", assert.AnError, false)})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := probe(ctx, options{url: url, text: "hello"}, &out)

	assert.ErrorIs(t, err, errTurnFailed)
	assert.Contains(t, out.String(), "generation_failed")
}

func TestBuildTurnChoosesVision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n0000"), 0o600))

	ev, err := buildTurn("s1", "what do you see here?", path)
	require.NoError(t, err)
	vision, ok := ev.(protocol.Vision)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(vision.Frame, "data:image/png;base64,"))

	ev, err = buildTurn("s1", "tell me a joke", path)
	require.NoError(t, err)
	_, ok = ev.(protocol.Transcript)
	assert.True(t, ok)

	_, err = buildTurn("s1", "", filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
