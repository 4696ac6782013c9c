package handler

import (
	"net/http"

	"github.com/almoxsms/almox-backend/internal/almox/service"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/almoxsms/almox-backend/pkg/httputil"
	"github.com/almoxsms/almox-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// UsuarioHandler handles user administration endpoints
type UsuarioHandler struct {
	service *service.UsuarioService
	logger  *logger.Logger
}

// NewUsuarioHandler creates a new user handler
func NewUsuarioHandler(svc *service.UsuarioService, log *logger.Logger) *UsuarioHandler {
	return &UsuarioHandler{
		service: svc,
		logger:  log,
	}
}

// List lists the users the actor manages
func (h *UsuarioHandler) List(w http.ResponseWriter, r *http.Request) {
	usuarios, err := h.service.List(r.Context(), service.UsuarioQuery{
		Role:   actor.Role(r.URL.Query().Get("role")),
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, usuarios, &httputil.Meta{Total: int64(len(usuarios))})
}

// Get gets a user by id
func (h *UsuarioHandler) Get(w http.ResponseWriter, r *http.Request) {
	usuario, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, usuario)
}

// Create creates a user
func (h *UsuarioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUsuarioRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}

	usuario, err := h.service.Create(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}

	h.logger.For(r.Context()).Info().Str("usuario_id", usuario.ID).Str("role", string(usuario.Role)).Msg("usuario created")
	httputil.Created(w, usuario)
}

// Update updates a user
func (h *UsuarioHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateUsuarioRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}

	usuario, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, usuario)
}

// Delete deletes a user
func (h *UsuarioHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	httputil.NoContent(w)
}
