package handler

import (
	"net/http"
	"strconv"

	"github.com/almoxsms/almox-backend/internal/almox/service"
	"github.com/almoxsms/almox-backend/pkg/httputil"
	"github.com/almoxsms/almox-backend/pkg/logger"
)

// AlertaHandler handles stock alert endpoints
type AlertaHandler struct {
	service *service.AlertaService
	pager   pager
	logger  *logger.Logger
}

// NewAlertaHandler creates a new alert handler
func NewAlertaHandler(svc *service.AlertaService, p pager, log *logger.Logger) *AlertaHandler {
	return &AlertaHandler{
		service: svc,
		pager:   p,
		logger:  log,
	}
}

// List lists alerts; ?resolvido=false keeps only open ones
func (h *AlertaHandler) List(w http.ResponseWriter, r *http.Request) {
	page := h.pager.read(r)
	q := service.AlertaQuery{
		ProdutoID: r.URL.Query().Get("produto_id"),
		Page:      page,
	}
	if v, err := strconv.ParseBool(r.URL.Query().Get("resolvido")); err == nil {
		q.Resolvido = &v
	}

	alertas, total, err := h.service.List(r.Context(), q)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, alertas, meta(page, total))
}

// Resolve marks an alert resolved
func (h *AlertaHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}

	alerta, err := h.service.Resolve(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, alerta)
}
