package handler

import (
	"net/http"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/ledger"
	"github.com/almoxsms/almox-backend/internal/almox/service"
	"github.com/almoxsms/almox-backend/pkg/httputil"
	"github.com/almoxsms/almox-backend/pkg/logger"
)

// MovimentacaoHandler handles stock movement endpoints
type MovimentacaoHandler struct {
	service *service.MovimentacaoService
	pager   pager
	logger  *logger.Logger
}

// NewMovimentacaoHandler creates a new movement handler
func NewMovimentacaoHandler(svc *service.MovimentacaoService, p pager, log *logger.Logger) *MovimentacaoHandler {
	return &MovimentacaoHandler{
		service: svc,
		pager:   p,
		logger:  log,
	}
}

// MovimentacaoResponse is a recorded movement and the balances it left.
type MovimentacaoResponse struct {
	Movimentacao *domain.Movimentacao `json:"movimentacao"`
	Estoques     []*domain.Estoque    `json:"estoques"`
}

func (h *MovimentacaoHandler) created(w http.ResponseWriter, r *http.Request, res *ledger.Result) {
	h.logger.For(r.Context()).Info().
		Str("movimentacao_id", res.Movimentacao.ID.String()).
		Str("tipo", string(res.Movimentacao.Tipo)).
		Str("produto_id", res.Movimentacao.ProdutoID).
		Str("quantidade", res.Movimentacao.Quantidade.String()).
		Msg("movimentacao recorded")
	httputil.Created(w, MovimentacaoResponse{Movimentacao: res.Movimentacao, Estoques: res.Balances})
}

// Entrada receives stock at a location
func (h *MovimentacaoHandler) Entrada(w http.ResponseWriter, r *http.Request) {
	var in service.EntradaInput
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}

	res, err := h.service.Entrada(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.created(w, r, res)
}

// Distribuicao moves stock between two locations
func (h *MovimentacaoHandler) Distribuicao(w http.ResponseWriter, r *http.Request) {
	var in service.DistribuicaoInput
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}

	res, err := h.service.Distribuicao(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.created(w, r, res)
}

// EstornoDistribuicao returns stock from a setor
func (h *MovimentacaoHandler) EstornoDistribuicao(w http.ResponseWriter, r *http.Request) {
	var in service.EstornoInput
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}

	res, err := h.service.EstornoDistribuicao(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.created(w, r, res)
}

// SaidaJustificada removes stock for a stated reason
func (h *MovimentacaoHandler) SaidaJustificada(w http.ResponseWriter, r *http.Request) {
	var in service.SaidaJustificadaInput
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}

	res, err := h.service.SaidaJustificada(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.created(w, r, res)
}

// Consumo consumes stock at a setor
func (h *MovimentacaoHandler) Consumo(w http.ResponseWriter, r *http.Request) {
	var in service.ConsumoInput
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}

	res, err := h.service.Consumo(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.created(w, r, res)
}

// List lists movements, newest first
func (h *MovimentacaoHandler) List(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "data_inicio", false)
	if err != nil {
		fail(w, r, err)
		return
	}
	to, err := queryTime(r, "data_fim", true)
	if err != nil {
		fail(w, r, err)
		return
	}

	page := h.pager.read(r)
	q := r.URL.Query()
	movs, total, err := h.service.List(r.Context(), service.MovimentacaoQuery{
		ProdutoID: q.Get("produto_id"),
		Tipo:      domain.MovimentacaoTipo(q.Get("tipo")),
		LocalTipo: domain.LocalTipo(q.Get("local_tipo")),
		LocalID:   q.Get("local_id"),
		From:      from,
		To:        to,
		Page:      page,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, movs, meta(page, total))
}
