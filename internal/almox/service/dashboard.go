package service

import (
	"context"
	"time"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/permissions"
)

// DashboardService computes the home page counters.
type DashboardService struct {
	core
	now func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(d Deps) *DashboardService {
	return &DashboardService{core: newCore(d, "dashboard-service"), now: time.Now}
}

// DashboardStats represents dashboard statistics
type DashboardStats struct {
	TotalProdutos     int64 `json:"total_produtos"`
	EstoqueNormal     int64 `json:"estoque_normal"`
	EstoqueBaixo      int64 `json:"estoque_baixo"`
	EstoqueZerado     int64 `json:"estoque_zerado"`
	DemandasPendentes int64 `json:"demandas_pendentes"`
	DemandasParciais  int64 `json:"demandas_parciais"`
	MovimentacoesHoje int64 `json:"movimentacoes_hoje"`
	AlertasAbertos    int64 `json:"alertas_abertos"`
}

// Stats counts what the actor can see.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	a, err := s.authorize(ctx, permissions.DashboardRead)
	if err != nil {
		return nil, err
	}
	scope, err := s.scope(ctx, a)
	if err != nil {
		return nil, err
	}
	stats := &DashboardStats{}
	one := domain.Page{Page: 1, PerPage: 1}

	produtos := store.ProdutoFilter{Page: one}
	if !a.IsSuperAdmin() {
		produtos.CentralID = a.CentralID
	}
	if _, stats.TotalProdutos, err = s.Store.Produtos().List(ctx, produtos); err != nil {
		return nil, err
	}

	counters := map[domain.EstoqueStatus]*int64{
		domain.StatusNormal: &stats.EstoqueNormal,
		domain.StatusBaixo:  &stats.EstoqueBaixo,
		domain.StatusZerado: &stats.EstoqueZerado,
	}
	for status, dst := range counters {
		_, total, err := s.Store.Estoques().List(ctx, store.EstoqueFilter{
			Scope:    scope,
			Status:   status,
			LowRatio: s.Ledger.Ratio(),
			Page:     one,
		})
		if err != nil {
			return nil, err
		}
		*dst = total
	}

	byStatus, err := s.Store.Demandas().CountByStatus(ctx, scope)
	if err != nil {
		return nil, err
	}
	stats.DemandasPendentes = byStatus[domain.DemandaPendente]
	stats.DemandasParciais = byStatus[domain.DemandaParcial]

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if stats.MovimentacoesHoje, err = s.Store.Movimentacoes().CountSince(ctx, scope, midnight); err != nil {
		return nil, err
	}

	open := false
	if _, stats.AlertasAbertos, err = s.Store.Alertas().List(ctx, store.AlertaFilter{Scope: scope, Resolvido: &open, Page: one}); err != nil {
		return nil, err
	}
	return stats, nil
}
