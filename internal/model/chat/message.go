package chat

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. Image bytes are never retained, only HasImage.
type Message struct {
	ID        string `json:"id"`
	Seq       uint64 `json:"seq"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	HasImage  bool   `json:"hasImage,omitempty"`
}
