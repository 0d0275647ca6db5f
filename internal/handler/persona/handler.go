package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/scatty/backend/internal/model/persona"
	"github.com/zhouzirui/scatty/backend/pkg/utils"
)

// Handler persona服务的HTTP处理器
type Handler struct {
	personas persona.Store
	activeID string
}

// New 创建persona处理器；activeID 为当前驱动系统提示词的persona
func New(personas persona.Store, activeID string) *Handler {
	return &Handler{
		personas: personas,
		activeID: activeID,
	}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
	r.Get("/personas/{personaID}", h.handleGetPersona)
}

type listResponse struct {
	Active   string            `json:"active"`
	Personas []persona.Persona `json:"personas"`
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, r, http.StatusOK, listResponse{
		Active:   h.activeID,
		Personas: h.personas.List(),
	})
}

func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	p, ok := h.personas.FindByID(chi.URLParam(r, "personaID"))
	if !ok {
		utils.RespondError(w, r, http.StatusNotFound, "persona not found")
		return
	}
	utils.RespondJSON(w, r, http.StatusOK, p)
}
