package chat

// Session captures one ongoing conversation. CreatedAt and LastActivity are epoch millis.
type Session struct {
	ID           string    `json:"id"`
	Messages     []Message `json:"messages"`
	CreatedAt    int64     `json:"createdAt"`
	LastActivity int64     `json:"lastActivity"`
}
