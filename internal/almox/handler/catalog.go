package handler

import (
	"net/http"

	"github.com/almoxsms/almox-backend/internal/almox/service"
	"github.com/almoxsms/almox-backend/pkg/httputil"
	"github.com/almoxsms/almox-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// CatalogHandler handles categoria and produto endpoints
type CatalogHandler struct {
	service *service.CatalogService
	pager   pager
	logger  *logger.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(svc *service.CatalogService, p pager, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		pager:   p,
		logger:  log,
	}
}

// ListCategorias lists the categorias the actor may use
func (h *CatalogHandler) ListCategorias(w http.ResponseWriter, r *http.Request) {
	categorias, err := h.service.ListCategorias(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, categorias)
}

// GetCategoria gets a categoria by id
func (h *CatalogHandler) GetCategoria(w http.ResponseWriter, r *http.Request) {
	categoria, err := h.service.GetCategoria(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, categoria)
}

// CreateCategoria creates a categoria
func (h *CatalogHandler) CreateCategoria(w http.ResponseWriter, r *http.Request) {
	var in service.CategoriaInput
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}

	categoria, err := h.service.CreateCategoria(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.Created(w, categoria)
}

// UpdateCategoria updates a categoria
func (h *CatalogHandler) UpdateCategoria(w http.ResponseWriter, r *http.Request) {
	var in service.CategoriaInput
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}

	categoria, err := h.service.UpdateCategoria(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, categoria)
}

// DeleteCategoria deletes a categoria
func (h *CatalogHandler) DeleteCategoria(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCategoria(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	httputil.NoContent(w)
}

// ListProdutos lists products
func (h *CatalogHandler) ListProdutos(w http.ResponseWriter, r *http.Request) {
	page := h.pager.read(r)
	q := r.URL.Query()

	produtos, total, err := h.service.ListProdutos(r.Context(), service.ProdutoQuery{
		Search:      q.Get("search"),
		CategoriaID: q.Get("categoria_id"),
		CentralID:   q.Get("central_id"),
		Page:        page,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, produtos, meta(page, total))
}

// GetProduto gets a product by any of its ids or its code
func (h *CatalogHandler) GetProduto(w http.ResponseWriter, r *http.Request) {
	produto, err := h.service.GetProduto(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, produto)
}

// CreateProduto creates a product
func (h *CatalogHandler) CreateProduto(w http.ResponseWriter, r *http.Request) {
	var in service.ProdutoInput
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}

	produto, err := h.service.CreateProduto(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}

	h.logger.For(r.Context()).Info().Str("produto_id", produto.ID).Str("codigo", produto.Codigo).Msg("produto created")
	httputil.Created(w, produto)
}

// UpdateProduto updates a product; the code is kept
func (h *CatalogHandler) UpdateProduto(w http.ResponseWriter, r *http.Request) {
	var in service.ProdutoInput
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}

	produto, err := h.service.UpdateProduto(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, produto)
}

// DeleteProduto deletes a product without stock
func (h *CatalogHandler) DeleteProduto(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProduto(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	httputil.NoContent(w)
}

// Detalhes returns a product with its lotes and balances
func (h *CatalogHandler) Detalhes(w http.ResponseWriter, r *http.Request) {
	det, err := h.service.Detalhes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, det)
}

// GerarCodigo suggests the next product code of a categoria
func (h *CatalogHandler) GerarCodigo(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CategoriaID string `json:"categoria_id"`
	}
	in.CategoriaID = r.URL.Query().Get("categoria_id")
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &in); err != nil {
			fail(w, r, err)
			return
		}
	}

	codigo, err := h.service.GerarCodigo(r.Context(), in.CategoriaID)
	if err != nil {
		fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"codigo": codigo})
}

// LimparDadosSemLotes removes the balances and movements of a product with no lotes
func (h *CatalogHandler) LimparDadosSemLotes(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.LimparDadosSemLotes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}

	h.logger.For(r.Context()).Warn().
		Str("produto_id", chi.URLParam(r, "id")).
		Int64("estoques", res.Estoques).
		Int64("movimentacoes", res.Movimentacoes).
		Msg("produto data purged")
	httputil.JSON(w, http.StatusOK, res)
}
