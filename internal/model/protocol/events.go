package protocol

import "github.com/zhouzirui/scatty/backend/internal/analysis/emotion"

// EventName is the logical name carried in every envelope.
type EventName string

const (
	// client -> server
	EventSessionStart EventName = "session:start"
	EventSessionEnd   EventName = "session:end"
	EventTranscript   EventName = "transcript"
	EventVision       EventName = "vision"

	// server -> client
	EventSessionStarted   EventName = "session:started"
	EventStateUpdate      EventName = "state:update"
	EventResponseComplete EventName = "response:complete"
	EventError            EventName = "error"
)

// Error codes sent in Error.Code.
const (
	CodeGenerationFailed  = "generation_failed"
	CodeGenerationTimeout = "generation_timeout"
	CodeInvalidFrame      = "invalid_frame"
	CodeInvalidPayload    = "invalid_payload"
	CodeUnknownEvent      = "unknown_event"
	CodeSessionRequired   = "session_required"
	CodeSessionMismatch   = "session_mismatch"
	CodeInternal          = "internal_error"
)

// ClientEvent is the closed set of events a client may send.
type ClientEvent interface {
	Name() EventName
	Session() string
	isClientEvent()
}

// ServerEvent is the closed set of events the server emits.
type ServerEvent interface {
	Name() EventName
	Session() string
	isServerEvent()
}

type SessionStart struct {
	SessionID string `json:"sessionId"`
}

type SessionEnd struct {
	SessionID string `json:"sessionId"`
}

// Transcript carries recognised speech. Non-final transcripts are advisory.
type Transcript struct {
	Text      string `json:"text"`
	IsFinal   bool   `json:"isFinal"`
	SessionID string `json:"sessionId"`
}

// Vision carries a still frame, base64 encoded, optionally as a data URL.
type Vision struct {
	Text      string `json:"text"`
	Frame     string `json:"frame"`
	SessionID string `json:"sessionId"`
}

func (SessionStart) Name() EventName { return EventSessionStart }
func (SessionEnd) Name() EventName   { return EventSessionEnd }
func (Transcript) Name() EventName   { return EventTranscript }
func (Vision) Name() EventName       { return EventVision }

func (e SessionStart) Session() string { return e.SessionID }
func (e SessionEnd) Session() string   { return e.SessionID }
func (e Transcript) Session() string   { return e.SessionID }
func (e Vision) Session() string       { return e.SessionID }

func (SessionStart) isClientEvent() {}
func (SessionEnd) isClientEvent()   {}
func (Transcript) isClientEvent()   {}
func (Vision) isClientEvent()       {}

type SessionStarted struct {
	SessionID string `json:"sessionId"`
}

type StateUpdate struct {
	State     State  `json:"state"`
	SessionID string `json:"sessionId"`
}

type ResponseComplete struct {
	FullText  string             `json:"fullText"`
	SessionID string             `json:"sessionId"`
	Emotion   emotion.Descriptor `json:"emotion"`
}

type Error struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	SessionID string `json:"sessionId"`
}

func (SessionStarted) Name() EventName   { return EventSessionStarted }
func (StateUpdate) Name() EventName      { return EventStateUpdate }
func (ResponseComplete) Name() EventName { return EventResponseComplete }
func (Error) Name() EventName            { return EventError }

func (e SessionStarted) Session() string   { return e.SessionID }
func (e StateUpdate) Session() string      { return e.SessionID }
func (e ResponseComplete) Session() string { return e.SessionID }
func (e Error) Session() string            { return e.SessionID }

func (SessionStarted) isServerEvent()   {}
func (StateUpdate) isServerEvent()      {}
func (ResponseComplete) isServerEvent() {}
func (Error) isServerEvent()            {}
