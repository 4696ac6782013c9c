package service

import (
	"context"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/policy"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/permissions"
	"github.com/google/uuid"
)

// AlertaService exposes the low stock alertas opened by the alerta consumer.
type AlertaService struct {
	core
}

// NewAlertaService creates a new alerta service
func NewAlertaService(d Deps) *AlertaService {
	return &AlertaService{core: newCore(d, "alerta-service")}
}

// AlertaQuery filters an alerta listing.
type AlertaQuery struct {
	Resolvido *bool
	ProdutoID string
	Page      domain.Page
}

// List lists alertas inside the actor's scope.
func (s *AlertaService) List(ctx context.Context, q AlertaQuery) ([]*domain.Alerta, int64, error) {
	a, err := s.authorize(ctx, permissions.AlertasRead)
	if err != nil {
		return nil, 0, err
	}
	scope, err := s.scope(ctx, a)
	if err != nil {
		return nil, 0, err
	}
	return s.Store.Alertas().List(ctx, store.AlertaFilter{
		Scope:     scope,
		Resolvido: q.Resolvido,
		ProdutoID: q.ProdutoID,
		Page:      q.Page,
	})
}

// Resolve closes an alerta by hand. Resolving twice is a no-op.
func (s *AlertaService) Resolve(ctx context.Context, id uuid.UUID) (*domain.Alerta, error) {
	a, err := s.authorize(ctx, permissions.AlertasResolve)
	if err != nil {
		return nil, err
	}
	alerta, err := s.Store.Alertas().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	scope, err := s.scope(ctx, a)
	if err != nil {
		return nil, err
	}
	if !scope.MatchAlerta(alerta) {
		return nil, policy.Deny(policy.ReasonLocal).Err()
	}

	alerta, err = s.Store.Alertas().Resolve(ctx, id, a.DisplayName())
	if err != nil {
		return nil, err
	}
	s.logger.For(ctx).Info().Str("alerta_id", id.String()).Msg("alerta resolved")
	return alerta, nil
}
