package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/events"
	"github.com/almoxsms/almox-backend/internal/almox/ledger"
	"github.com/almoxsms/almox-backend/internal/almox/policy"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/permissions"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DemandaService runs the supply request workflow of the setores.
type DemandaService struct {
	core
	now func() time.Time
}

// NewDemandaService creates a new demanda service
func NewDemandaService(d Deps) *DemandaService {
	return &DemandaService{core: newCore(d, "demanda-service"), now: time.Now}
}

// DemandaItemInput is one requested line.
type DemandaItemInput struct {
	ProdutoID  string          `json:"produto_id" validate:"required"`
	Quantidade decimal.Decimal `json:"quantidade" validate:"gt=0"`
	Observacao string          `json:"observacao"`
}

// DemandaInput creates a demanda. operador_setor always requests for its own
// setor.
type DemandaInput struct {
	SetorID     string             `json:"setor_id"`
	Items       []DemandaItemInput `json:"items" validate:"required,min=1,dive"`
	Observacoes string             `json:"observacoes"`
}

// AtenderInput is one fulfillment batch sent from Origem.
type AtenderInput struct {
	Origem domain.LocalRef          `json:"origem"`
	Items  []domain.AtendimentoItem `json:"items" validate:"required,min=1"`
}

// DemandaQuery filters a demanda listing.
type DemandaQuery struct {
	SetorID string
	Status  domain.DemandaStatus
	Page    domain.Page
}

// AtendimentoResult is the updated demanda and the transfers it produced.
type AtendimentoResult struct {
	Demanda       *domain.Demanda        `json:"demanda"`
	Movimentacoes []*domain.Movimentacao `json:"movimentacoes"`
}

// Create opens a demanda for a setor. The setor's ancestor chain is
// captured now.
func (s *DemandaService) Create(ctx context.Context, in DemandaInput) (*domain.Demanda, error) {
	a, err := s.authorize(ctx, permissions.DemandasCreate)
	if err != nil {
		return nil, err
	}
	setorID := in.SetorID
	if a.Role == actor.RoleOperadorSetor || setorID == "" {
		setorID = a.ScopeID
	}
	setor, err := s.local(ctx, domain.LocalRef{Tipo: domain.LocalSetor, ID: setorID})
	if err != nil {
		return nil, err
	}
	if err := s.check(s.Policy.CanActOn(ctx, a, setor.Tipo, setor.ID)); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, errors.InvalidField("items", "validation.required")
	}

	items := make(domain.DemandaItems, 0, len(in.Items))
	for n, it := range in.Items {
		if !it.Quantidade.IsPositive() {
			return nil, errors.InvalidField(fmt.Sprintf("items[%d].quantidade", n), "validation.positive")
		}
		p, err := s.Store.Produtos().Get(ctx, it.ProdutoID)
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidField(fmt.Sprintf("items[%d].produto_id", n), "validation.invalid")
		}
		if err != nil {
			return nil, err
		}
		items = append(items, domain.DemandaItem{
			ProdutoID:  p.ID,
			Quantidade: it.Quantidade,
			Observacao: strings.TrimSpace(it.Observacao),
		})
	}

	chain, err := s.Resolver.ResolveSetorChain(ctx, setor)
	if err != nil {
		return nil, err
	}
	d := &domain.Demanda{
		SetorID:           setor.ID,
		CentralID:         chain.CentralID,
		AlmoxarifadoID:    chain.AlmoxarifadoID,
		SubAlmoxarifadoID: chain.SubAlmoxarifadoID,
		DestinoTipo:       domain.LocalSetor,
		Status:            domain.DemandaPendente,
		Items:             items,
		Atendimentos:      domain.Atendimentos{},
		Observacoes:       strings.TrimSpace(in.Observacoes),
		CriadoPor:         a.DisplayName(),
	}
	if err := s.Store.Demandas().Create(ctx, d); err != nil {
		return nil, err
	}

	s.Publisher.PublishDemanda(ctx, d, events.AcaoCriada, a.DisplayName())
	s.logger.For(ctx).Info().Str("demanda_id", d.ID.String()).Str("setor_id", d.SetorID).Msg("demanda created")
	return d, nil
}

// visible loads a demanda and checks it is inside the actor's scope.
func (s *DemandaService) visible(ctx context.Context, a *actor.Actor, id uuid.UUID) (*domain.Demanda, error) {
	d, err := s.Store.Demandas().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	scope, err := s.scope(ctx, a)
	if err != nil {
		return nil, err
	}
	if !scope.MatchDemanda(d) {
		return nil, policy.Deny(policy.ReasonLocal).Err()
	}
	return d, nil
}

func (s *DemandaService) Get(ctx context.Context, id uuid.UUID) (*domain.Demanda, error) {
	a, err := s.authorize(ctx, permissions.DemandasRead)
	if err != nil {
		return nil, err
	}
	return s.visible(ctx, a, id)
}

// List lists demandas inside the actor's scope, newest first.
func (s *DemandaService) List(ctx context.Context, q DemandaQuery) ([]*domain.Demanda, int64, error) {
	a, err := s.authorize(ctx, permissions.DemandasRead)
	if err != nil {
		return nil, 0, err
	}
	scope, err := s.scope(ctx, a)
	if err != nil {
		return nil, 0, err
	}
	return s.Store.Demandas().List(ctx, store.DemandaFilter{Scope: scope, SetorID: q.SetorID, Status: q.Status, Page: q.Page})
}

// Delete removes a demanda nobody started fulfilling.
func (s *DemandaService) Delete(ctx context.Context, id uuid.UUID) error {
	a, err := s.authorize(ctx, permissions.DemandasDelete)
	if err != nil {
		return err
	}
	d, err := s.visible(ctx, a, id)
	if err != nil {
		return err
	}
	if a.Role == actor.RoleOperadorSetor {
		if err := s.check(s.Policy.CanActOn(ctx, a, domain.LocalSetor, d.SetorID)); err != nil {
			return err
		}
	}
	err = s.Store.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.Store.Demandas().GetForUpdate(ctx, d.ID)
		if err != nil {
			return err
		}
		if !current.Deletable() {
			return errors.ConflictWithKey("errors.demanda_bloqueada", nil)
		}
		return s.Store.Demandas().Delete(ctx, current.ID)
	})
	if err != nil {
		return err
	}

	s.Publisher.PublishDemanda(ctx, d, events.AcaoExcluida, a.DisplayName())
	s.logger.For(ctx).Info().Str("demanda_id", d.ID.String()).Msg("demanda deleted")
	return nil
}

// Atender fulfills part or all of a demanda from origem. Every line is a
// distribuicao into the setor; the transfers and the demanda update commit
// together or not at all.
func (s *DemandaService) Atender(ctx context.Context, id uuid.UUID, in AtenderInput) (*AtendimentoResult, error) {
	a, err := s.authorize(ctx, permissions.DemandasAtender)
	if err != nil {
		return nil, err
	}
	d, err := s.visible(ctx, a, id)
	if err != nil {
		return nil, err
	}
	origem, err := s.local(ctx, in.Origem)
	if err != nil {
		return nil, err
	}
	if err := s.check(s.Policy.CanActOn(ctx, a, origem.Tipo, origem.ID)); err != nil {
		return nil, err
	}
	if err := d.CheckAtendimento(in.Items); err != nil {
		return nil, err
	}
	setor, err := s.Store.Locais().Get(ctx, domain.LocalSetor, d.SetorID)
	if err != nil {
		return nil, err
	}

	produtos := make([]*domain.Produto, len(in.Items))
	for n, it := range in.Items {
		if produtos[n], err = s.Store.Produtos().Get(ctx, it.ProdutoID); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	out := &AtendimentoResult{}
	var results []*ledger.Result
	err = s.Store.WithinTx(ctx, func(ctx context.Context) error {
		// Lock the demanda before moving stock; the restante check must run
		// against what concurrent batches already committed.
		current, err := s.Store.Demandas().GetForUpdate(ctx, d.ID)
		if err != nil {
			return err
		}
		if err := current.CheckAtendimento(in.Items); err != nil {
			return err
		}

		batch := domain.Atendimento{
			AtendidoPor: a.DisplayName(),
			OrigemTipo:  origem.Tipo,
			OrigemID:    origem.ID,
			CreatedAt:   now,
		}
		for n, it := range in.Items {
			m := &domain.Movimentacao{
				Tipo:               domain.MovDistribuicao,
				DataMovimentacao:   now,
				UsuarioID:          a.ID,
				UsuarioResponsavel: a.DisplayName(),
				DemandaID:          current.ID.String(),
				Observacoes:        fmt.Sprintf("Atendimento da demanda %s", current.ID),
			}
			res, err := s.Ledger.Transfer(ctx, produtos[n], origem, setor, it.Quantidade, m)
			if err != nil {
				return err
			}
			results = append(results, res)
			batch.Items = append(batch.Items, domain.AtendimentoItem{ProdutoID: produtos[n].ID, Quantidade: it.Quantidade})
		}

		if err := current.ApplyAtendimento(batch); err != nil {
			return err
		}
		if err := s.Store.Demandas().Update(ctx, current); err != nil {
			return err
		}
		out.Demanda = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		out.Movimentacoes = append(out.Movimentacoes, res.Movimentacao)
		s.publishResult(ctx, res)
	}
	s.Publisher.PublishDemanda(ctx, out.Demanda, events.AcaoAtendida, a.DisplayName())
	s.logger.For(ctx).Info().
		Str("demanda_id", out.Demanda.ID.String()).
		Str("status", string(out.Demanda.Status)).
		Str("origem_id", origem.ID).
		Int("items", len(in.Items)).
		Msg("demanda atendida")
	return out, nil
}
