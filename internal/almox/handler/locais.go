package handler

import (
	"net/http"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/service"
	"github.com/almoxsms/almox-backend/pkg/httputil"
	"github.com/almoxsms/almox-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// LocalHandler handles the four location collections
type LocalHandler struct {
	service *service.LocalService
	logger  *logger.Logger
}

// NewLocalHandler creates a new location handler
func NewLocalHandler(svc *service.LocalService, log *logger.Logger) *LocalHandler {
	return &LocalHandler{
		service: svc,
		logger:  log,
	}
}

// Routes mounts the CRUD endpoints of one location kind.
func (h *LocalHandler) Routes(tipo domain.LocalTipo) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.list(tipo))
		r.Post("/", h.create(tipo))
		r.Get("/{id}", h.get(tipo))
		r.Put("/{id}", h.update(tipo))
		r.Delete("/{id}", h.delete(tipo))
	}
}

func (h *LocalHandler) list(tipo domain.LocalTipo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		locais, err := h.service.List(r.Context(), tipo, service.LocalQuery{
			Search:         q.Get("search"),
			CentralID:      q.Get("central_id"),
			AlmoxarifadoID: q.Get("almoxarifado_id"),
		})
		if err != nil {
			fail(w, r, err)
			return
		}
		httputil.JSONWithMeta(w, http.StatusOK, locais, &httputil.Meta{Total: int64(len(locais))})
	}
}

func (h *LocalHandler) get(tipo domain.LocalTipo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		local, err := h.service.Get(r.Context(), tipo, chi.URLParam(r, "id"))
		if err != nil {
			fail(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusOK, local)
	}
}

func (h *LocalHandler) create(tipo domain.LocalTipo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.LocalInput
		if err := decode(r, &in); err != nil {
			fail(w, r, err)
			return
		}

		local, err := h.service.Create(r.Context(), tipo, in)
		if err != nil {
			fail(w, r, err)
			return
		}

		h.logger.For(r.Context()).Info().Str("tipo", string(tipo)).Str("id", local.ID).Msg("local created")
		httputil.Created(w, local)
	}
}

func (h *LocalHandler) update(tipo domain.LocalTipo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.LocalInput
		if err := decode(r, &in); err != nil {
			fail(w, r, err)
			return
		}

		local, err := h.service.Update(r.Context(), tipo, chi.URLParam(r, "id"), in)
		if err != nil {
			fail(w, r, err)
			return
		}
		httputil.JSON(w, http.StatusOK, local)
	}
}

func (h *LocalHandler) delete(tipo domain.LocalTipo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.service.Delete(r.Context(), tipo, chi.URLParam(r, "id")); err != nil {
			fail(w, r, err)
			return
		}
		httputil.NoContent(w)
	}
}
