package handler

import (
	"net/http"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/service"
	"github.com/almoxsms/almox-backend/pkg/httputil"
	"github.com/almoxsms/almox-backend/pkg/logger"
)

// DemandaHandler handles demanda endpoints
type DemandaHandler struct {
	service *service.DemandaService
	pager   pager
	logger  *logger.Logger
}

// NewDemandaHandler creates a new demanda handler
func NewDemandaHandler(svc *service.DemandaService, p pager, log *logger.Logger) *DemandaHandler {
	return &DemandaHandler{
		service: svc,
		pager:   p,
		logger:  log,
	}
}

// List lists demandas in the actor's scope
func (h *DemandaHandler) List(w http.ResponseWriter, r *http.Request) {
	page := h.pager.read(r)
	q := r.URL.Query()

	demandas, total, err := h.service.List(r.Context(), service.DemandaQuery{
		SetorID: q.Get("setor_id"),
		Status:  domain.DemandaStatus(q.Get("status")),
		Page:    page,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, demandas, meta(page, total))
}

// Get gets a demanda by id
func (h *DemandaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}

	demanda, err := h.service.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, demanda)
}

// Create opens a demanda
func (h *DemandaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.DemandaInput
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}

	demanda, err := h.service.Create(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.Created(w, demanda)
}

// Delete removes a demanda that was never served
func (h *DemandaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	httputil.NoContent(w)
}

// Atender serves a batch of a demanda
func (h *DemandaHandler) Atender(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}

	var in service.AtenderInput
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}

	res, err := h.service.Atender(r.Context(), id, in)
	if err != nil {
		fail(w, r, err)
		return
	}

	h.logger.For(r.Context()).Info().
		Str("demanda_id", id.String()).
		Str("status", string(res.Demanda.Status)).
		Int("movimentacoes", len(res.Movimentacoes)).
		Msg("demanda served")
	httputil.JSON(w, http.StatusOK, res)
}
