package ai

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/zhouzirui/scatty/backend/internal/analysis/emotion"
)

type replyPayload struct {
	Text    *string         `json:"text"`
	Emotion json.RawMessage `json:"emotion"`
}

// ParseReply decodes the model output {"text": ..., "emotion": {...}}. When the output is
// not JSON or has no usable text, the raw output becomes the text unchanged and the
// default descriptor is used. A missing or malformed emotion alone only resets the
// descriptor.
func ParseReply(raw string) Reply {
	fallback := Reply{Text: raw, Emotion: emotion.Default()}

	object, ok := extractObject(raw)
	if !ok {
		return fallback
	}

	var payload replyPayload
	if err := json.Unmarshal([]byte(object), &payload); err != nil {
		return fallback
	}
	if payload.Text == nil || strings.TrimSpace(*payload.Text) == "" {
		return fallback
	}

	return Reply{
		Text:    strings.TrimSpace(*payload.Text),
		Emotion: parseDescriptor(payload.Emotion),
	}
}

func parseDescriptor(raw json.RawMessage) emotion.Descriptor {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return emotion.Default()
	}

	// a bare label is accepted too: "emotion": "happy"
	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		d, _ := emotion.FromWire(emotion.Wire{Emotion: label})
		return d
	}

	var wire emotion.Wire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return emotion.Default()
	}
	d, _ := emotion.FromWire(wire)
	return d
}

// extractObject strips markdown fences and surrounding prose around a JSON object.
func extractObject(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return trimmed[start : end+1], true
}
