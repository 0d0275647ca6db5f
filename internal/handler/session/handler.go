package session

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/scatty/backend/internal/model/chat"
	"github.com/zhouzirui/scatty/backend/internal/model/protocol"
	"github.com/zhouzirui/scatty/backend/pkg/utils"
)

// Sessions 会话存储的只读视图
type Sessions interface {
	Get(ctx context.Context, sessionID string) (chat.Session, bool)
	History(ctx context.Context, sessionID string) []chat.Message
}

// Conversations exposes per-session state and teardown.
type Conversations interface {
	State(sessionID string) protocol.State
	EndSession(sessionID string)
}

// Presence reports whether a client is connected to a session.
type Presence interface {
	Connected(sessionID string) bool
}

// Handler 会话状态的HTTP处理器
type Handler struct {
	sessions      Sessions
	conversations Conversations
	presence      Presence
}

// New 创建会话处理器
func New(sessions Sessions, conversations Conversations, presence Presence) *Handler {
	return &Handler{
		sessions:      sessions,
		conversations: conversations,
		presence:      presence,
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleStatus)
		r.Get("/messages", h.handleMessages)
		r.Delete("/", h.handleEnd)
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, ok := h.sessions.Get(r.Context(), sessionID); !ok {
		utils.RespondError(w, r, http.StatusNotFound, "session not found")
		return
	}

	utils.RespondJSON(w, r, http.StatusOK, protocol.Status{
		State:     h.conversations.State(sessionID),
		SessionID: sessionID,
		Connected: h.presence.Connected(sessionID),
	})
}

type messagesResponse struct {
	SessionID string         `json:"sessionId"`
	Messages  []chat.Message `json:"messages"`
}

// handleMessages returns the transcript; unknown sessions have an empty one.
func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messages := h.sessions.History(r.Context(), sessionID)
	if messages == nil {
		messages = []chat.Message{}
	}
	utils.RespondJSON(w, r, http.StatusOK, messagesResponse{SessionID: sessionID, Messages: messages})
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	h.conversations.EndSession(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}
