package handler

import (
	"net/http"

	"github.com/almoxsms/almox-backend/internal/almox/service"
	"github.com/almoxsms/almox-backend/pkg/httputil"
	"github.com/almoxsms/almox-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// LoteHandler handles lote endpoints
type LoteHandler struct {
	service *service.LoteService
	logger  *logger.Logger
}

// NewLoteHandler creates a new lote handler
func NewLoteHandler(svc *service.LoteService, log *logger.Logger) *LoteHandler {
	return &LoteHandler{
		service: svc,
		logger:  log,
	}
}

// ListByProduto lists a product's lotes
func (h *LoteHandler) ListByProduto(w http.ResponseWriter, r *http.Request) {
	lotes, err := h.service.ListByProduto(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lotes)
}

// Create registers a lote for a product
func (h *LoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.LoteInput
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}

	lote, err := h.service.Create(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.Created(w, lote)
}

// Get gets a lote by id
func (h *LoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}

	lote, err := h.service.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lote)
}

// Update changes a lote; a quantity change moves the balance by the delta
func (h *LoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}

	var in service.LoteUpdate
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}

	lote, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lote)
}

// Delete removes a lote and its quantity from the balance.
// ?force=true and ?purge_produto=true are honored for super_admin.
func (h *LoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}

	opts := service.LoteDelete{
		Force:        httputil.QueryBool(r, "force"),
		PurgeProduto: httputil.QueryBool(r, "purge_produto"),
	}
	if err := h.service.Delete(r.Context(), id, opts); err != nil {
		fail(w, r, err)
		return
	}

	if opts.PurgeProduto {
		h.logger.For(r.Context()).Warn().Str("lote_id", id.String()).Msg("lote deleted with produto purge")
	}
	httputil.NoContent(w)
}
