package handler

import (
	"net/http"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/service"
	"github.com/almoxsms/almox-backend/pkg/httputil"
	"github.com/almoxsms/almox-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// EstoqueHandler handles balance queries
type EstoqueHandler struct {
	service *service.EstoqueService
	pager   pager
	logger  *logger.Logger
}

// NewEstoqueHandler creates a new estoque handler
func NewEstoqueHandler(svc *service.EstoqueService, p pager, log *logger.Logger) *EstoqueHandler {
	return &EstoqueHandler{
		service: svc,
		pager:   p,
		logger:  log,
	}
}

// Hierarquia lists the balances in the actor's scope
func (h *EstoqueHandler) Hierarquia(w http.ResponseWriter, r *http.Request) {
	page := h.pager.read(r)
	q := r.URL.Query()

	rows, total, err := h.service.Hierarquia(r.Context(), service.EstoqueQuery{
		Produto:   q.Get("produto"),
		LocalTipo: domain.LocalTipo(q.Get("local_tipo")),
		LocalID:   q.Get("local_id"),
		Status:    domain.ParseEstoqueStatus(q.Get("status")),
		Page:      page,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, rows, meta(page, total))
}

// Setor lists the balances of one setor
func (h *EstoqueHandler) Setor(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Setor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rows)
}

// Local lists the balances of the location named by ?tipo=&id=
func (h *EstoqueHandler) Local(w http.ResponseWriter, r *http.Request) {
	ref := domain.LocalRef{
		Tipo: domain.LocalTipo(r.URL.Query().Get("tipo")),
		ID:   r.URL.Query().Get("id"),
	}
	if err := httputil.ValidateCtx(r.Context(), ref); err != nil {
		fail(w, r, err)
		return
	}

	rows, err := h.service.Local(r.Context(), ref.Tipo, ref.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rows)
}

// Origens lists the locations the actor may send stock from
func (h *EstoqueHandler) Origens(w http.ResponseWriter, r *http.Request) {
	locais, err := h.service.Origens(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, locais)
}
