// Package handler exposes the almoxarifado services over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/service"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/httputil"
	"github.com/almoxsms/almox-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const defaultPerPage = 20

// Handlers groups every almoxarifado endpoint.
type Handlers struct {
	Locais        *LocalHandler
	Catalog       *CatalogHandler
	Lotes         *LoteHandler
	Movimentacoes *MovimentacaoHandler
	Estoque       *EstoqueHandler
	Demandas      *DemandaHandler
	Usuarios      *UsuarioHandler
	Alertas       *AlertaHandler
	Dashboard     *DashboardHandler
}

// New builds the handlers over d. maxPerPage caps list page sizes.
func New(d service.Deps, maxPerPage int, log *logger.Logger) *Handlers {
	if log == nil {
		log = logger.Nop()
	}
	p := pager{max: maxPerPage}
	return &Handlers{
		Locais:        NewLocalHandler(service.NewLocalService(d), log),
		Catalog:       NewCatalogHandler(service.NewCatalogService(d), p, log),
		Lotes:         NewLoteHandler(service.NewLoteService(d), log),
		Movimentacoes: NewMovimentacaoHandler(service.NewMovimentacaoService(d), p, log),
		Estoque:       NewEstoqueHandler(service.NewEstoqueService(d), p, log),
		Demandas:      NewDemandaHandler(service.NewDemandaService(d), p, log),
		Usuarios:      NewUsuarioHandler(service.NewUsuarioService(d), log),
		Alertas:       NewAlertaHandler(service.NewAlertaService(d), p, log),
		Dashboard:     NewDashboardHandler(service.NewDashboardService(d), log),
	}
}

// Register mounts the endpoints on r. Callers put authentication in front.
func (h *Handlers) Register(r chi.Router) {
	for path, tipo := range map[string]domain.LocalTipo{
		"/centrais":          domain.LocalCentral,
		"/almoxarifados":     domain.LocalAlmoxarifado,
		"/sub_almoxarifados": domain.LocalSubAlmoxarifado,
		"/setores":           domain.LocalSetor,
	} {
		r.Route(path, h.Locais.Routes(tipo))
	}

	r.Route("/categorias", func(r chi.Router) {
		r.Get("/", h.Catalog.ListCategorias)
		r.Post("/", h.Catalog.CreateCategoria)
		r.Get("/{id}", h.Catalog.GetCategoria)
		r.Put("/{id}", h.Catalog.UpdateCategoria)
		r.Delete("/{id}", h.Catalog.DeleteCategoria)
	})

	r.Route("/produtos", func(r chi.Router) {
		r.Get("/", h.Catalog.ListProdutos)
		r.Post("/", h.Catalog.CreateProduto)
		r.Post("/gerar-codigo", h.Catalog.GerarCodigo)
		r.Get("/{id}", h.Catalog.GetProduto)
		r.Put("/{id}", h.Catalog.UpdateProduto)
		r.Delete("/{id}", h.Catalog.DeleteProduto)
		r.Get("/{id}/detalhes", h.Catalog.Detalhes)
		r.Post("/{id}/limpar_dados_sem_lotes", h.Catalog.LimparDadosSemLotes)
		r.Get("/{id}/lotes", h.Lotes.ListByProduto)
		r.Post("/{id}/lotes", h.Lotes.Create)
	})

	r.Route("/lotes", func(r chi.Router) {
		r.Get("/{id}", h.Lotes.Get)
		r.Put("/{id}", h.Lotes.Update)
		r.Delete("/{id}", h.Lotes.Delete)
	})

	r.Route("/movimentacoes", func(r chi.Router) {
		r.Get("/", h.Movimentacoes.List)
		r.Post("/entrada", h.Movimentacoes.Entrada)
		r.Post("/distribuicao", h.Movimentacoes.Distribuicao)
		r.Post("/estorno_distribuicao", h.Movimentacoes.EstornoDistribuicao)
		r.Post("/saida_justificada", h.Movimentacoes.SaidaJustificada)
		r.Post("/consumo", h.Movimentacoes.Consumo)
	})

	r.Route("/estoque", func(r chi.Router) {
		r.Get("/hierarquia", h.Estoque.Hierarquia)
		r.Get("/setor/{id}", h.Estoque.Setor)
		r.Get("/local", h.Estoque.Local)
		r.Get("/origens", h.Estoque.Origens)
	})

	r.Route("/demandas", func(r chi.Router) {
		r.Get("/", h.Demandas.List)
		r.Post("/", h.Demandas.Create)
		r.Get("/{id}", h.Demandas.Get)
		r.Delete("/{id}", h.Demandas.Delete)
		r.Put("/{id}/atender", h.Demandas.Atender)
	})

	r.Route("/usuarios", func(r chi.Router) {
		r.Get("/", h.Usuarios.List)
		r.Post("/", h.Usuarios.Create)
		r.Get("/{id}", h.Usuarios.Get)
		r.Put("/{id}", h.Usuarios.Update)
		r.Delete("/{id}", h.Usuarios.Delete)
	})

	r.Get("/alertas", h.Alertas.List)
	r.Put("/alertas/{id}/resolver", h.Alertas.Resolve)

	r.Get("/dashboard/stats", h.Dashboard.Stats)
}

// pager reads page and per_page, capping per_page at max.
type pager struct {
	max int
}

func (p pager) read(r *http.Request) domain.Page {
	page, perPage := httputil.Pagination(r, defaultPerPage, p.max)
	return domain.Page{Page: page, PerPage: perPage}
}

func meta(p domain.Page, total int64) *httputil.Meta {
	return httputil.NewMeta(p.Page, p.PerPage, total)
}

// decode reads and validates a JSON body.
func decode(r *http.Request, v any) error {
	if err := httputil.DecodeJSON(r, v); err != nil {
		return err
	}
	return httputil.ValidateCtx(r.Context(), v)
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errors.InvalidField(name, "validation.invalid")
	}
	return id, nil
}

// queryTime accepts a date (2006-01-02) or an RFC 3339 timestamp. A bare
// date used as an upper bound covers the whole day.
func queryTime(r *http.Request, key string, endOfDay bool) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, errors.InvalidField(key, "validation.invalid")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	httputil.ErrorLocalized(w, r, err)
}
