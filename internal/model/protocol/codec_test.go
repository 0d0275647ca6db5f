package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/scatty/backend/internal/analysis/emotion"
)

func TestDecodeClientTranscript(t *testing.T) {
	raw := []byte(`{"event":"transcript","data":{"text":"Hello","isFinal":true,"sessionId":"s1","extra":1}}`)

	ev, err := DecodeClient(raw)
	require.NoError(t, err)

	tr, ok := ev.(Transcript)
	require.True(t, ok, "expected Transcript, got %T", ev)
	assert.Equal(t, "Hello", tr.Text)
	assert.True(t, tr.IsFinal)
	assert.Equal(t, "s1", tr.Session())
}

func TestDecodeClientRejectsUnknownEvent(t *testing.T) {
	_, err := DecodeClient([]byte(`{"event":"dance","data":{"sessionId":"s1"}}`))
	assert.True(t, errors.Is(err, ErrUnknownEvent))
}

func TestDecodeClientRequiresSessionID(t *testing.T) {
	_, err := DecodeClient([]byte(`{"event":"session:start","data":{}}`))
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	_, err = DecodeClient([]byte(`not json`))
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	_, err = DecodeClient([]byte(`{"event":"vision"}`))
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestEncodeServerEnvelope(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	raw, err := EncodeServer(StateUpdate{State: StateThinking, SessionID: "s1"}, now)
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "state:update", env["event"])
	assert.EqualValues(t, 1700000000000, env["timestamp"])
	assert.Equal(t, map[string]any{"state": "thinking", "sessionId": "s1"}, env["data"])
}

func TestErrorCodeIsOptionalOnWire(t *testing.T) {
	raw, err := EncodeServer(Error{Message: "boom", SessionID: "s1"}, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"code"`)
}

func TestDecodeServerResponseCompleteDefaultsEmotionFields(t *testing.T) {
	raw := []byte(`{"event":"response:complete","data":{"fullText":"hi","sessionId":"s1","emotion":{"emotion":"proud","intensity":0.8}}}`)

	ev, err := DecodeServer(raw)
	require.NoError(t, err)

	rc := ev.(ResponseComplete)
	assert.Equal(t, "hi", rc.FullText)
	assert.Equal(t, emotion.Proud, rc.Emotion.Emotion)
	assert.Equal(t, 0.8, rc.Emotion.Intensity)
	assert.Equal(t, emotion.Default().WingSpeed, rc.Emotion.WingSpeed)
}

func TestDecodeServerRejectsUnknownState(t *testing.T) {
	_, err := DecodeServer([]byte(`{"event":"state:update","data":{"state":"dancing","sessionId":"s1"}}`))
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestClientEventsSurviveEncoding(t *testing.T) {
	events := []ClientEvent{
		SessionStart{SessionID: "s1"},
		SessionEnd{SessionID: "s1"},
		Transcript{Text: "hey", IsFinal: false, SessionID: "s1"},
		Vision{Text: "what is this", Frame: "aGVsbG8=", SessionID: "s1"},
	}
	for _, want := range events {
		raw, err := EncodeClient(want, time.Now())
		require.NoError(t, err)
		got, err := DecodeClient(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDetectVisionIntent(t *testing.T) {
	assert.True(t, DetectVisionIntent("Hey, What do you SEE right now?"))
	assert.True(t, DetectVisionIntent("take a look at my plant"))
	assert.False(t, DetectVisionIntent("tell me a joke"))
}

func TestStateHelpers(t *testing.T) {
	assert.True(t, StateLooking.Busy())
	assert.False(t, StateIdle.Busy())
	assert.False(t, State("asleep").Valid())
}
