package protocol

// State is the server-driven interaction state shown by the client.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateThinking  State = "thinking"
	StateSpeaking  State = "speaking"
	StateLooking   State = "looking"
)

// Valid reports whether s is one of the five known states.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateListening, StateThinking, StateSpeaking, StateLooking:
		return true
	default:
		return false
	}
}

// Busy reports whether a turn is in progress.
func (s State) Busy() bool {
	return s == StateThinking || s == StateSpeaking || s == StateLooking
}

// Status mirrors what a client needs to render its header.
type Status struct {
	State     State  `json:"state"`
	SessionID string `json:"sessionId"`
	Connected bool   `json:"connected"`
}
