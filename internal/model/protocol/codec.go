package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/scatty/backend/internal/analysis/emotion"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Envelope frames a single event on the wire. Unknown fields are ignored so newer peers
// can add optional data without breaking older ones.
type Envelope struct {
	Event     EventName       `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// EncodeServer frames a server event.
func EncodeServer(ev ServerEvent, now time.Time) ([]byte, error) {
	return encode(ev.Name(), ev, now)
}

// EncodeClient frames a client event.
func EncodeClient(ev ClientEvent, now time.Time) ([]byte, error) {
	return encode(ev.Name(), ev, now)
}

func encode(name EventName, payload any, now time.Time) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	return json.Marshal(Envelope{Event: name, Data: data, Timestamp: now.UnixMilli()})
}

// DecodeClient parses one inbound frame into a typed client event.
func DecodeClient(raw []byte) (ClientEvent, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	var ev ClientEvent
	switch env.Event {
	case EventSessionStart:
		var p SessionStart
		err = unmarshalData(env, &p)
		ev = p
	case EventSessionEnd:
		var p SessionEnd
		err = unmarshalData(env, &p)
		ev = p
	case EventTranscript:
		var p Transcript
		err = unmarshalData(env, &p)
		ev = p
	case EventVision:
		var p Vision
		err = unmarshalData(env, &p)
		ev = p
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ev.Session()) == "" {
		return nil, fmt.Errorf("%w: %s requires sessionId", ErrInvalidPayload, env.Event)
	}
	return ev, nil
}

type responseCompleteWire struct {
	FullText  string       `json:"fullText"`
	SessionID string       `json:"sessionId"`
	Emotion   emotion.Wire `json:"emotion"`
}

// DecodeServer parses one outbound frame; used by clients and tests.
func DecodeServer(raw []byte) (ServerEvent, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	switch env.Event {
	case EventSessionStarted:
		var p SessionStarted
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case EventStateUpdate:
		var p StateUpdate
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if !p.State.Valid() {
			return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidPayload, p.State)
		}
		return p, nil
	case EventResponseComplete:
		var w responseCompleteWire
		if err := unmarshalData(env, &w); err != nil {
			return nil, err
		}
		d, _ := emotion.FromWire(w.Emotion)
		return ResponseComplete{FullText: w.FullText, SessionID: w.SessionID, Emotion: d}, nil
	case EventError:
		var p Error
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", ErrInvalidPayload)
	}
	return env, nil
}

func unmarshalData(env Envelope, dst any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrInvalidPayload, env.Event)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Event, err)
	}
	return nil
}
