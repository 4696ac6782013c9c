package service

import (
	"context"
	"strings"
	"time"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/ledger"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/permissions"
	"github.com/shopspring/decimal"
)

// MovimentacaoService records stock movements through the ledger.
type MovimentacaoService struct {
	core
	now func() time.Time
}

// NewMovimentacaoService creates a new movement service
func NewMovimentacaoService(d Deps) *MovimentacaoService {
	return &MovimentacaoService{core: newCore(d, "movimentacao-service"), now: time.Now}
}

// EntradaInput receives stock at a location, optionally into a lote.
type EntradaInput struct {
	ProdutoID     string              `json:"produto_id" validate:"required"`
	Quantidade    decimal.Decimal     `json:"quantidade" validate:"gt=0"`
	Destino       domain.LocalRef     `json:"destino"`
	Lote          string              `json:"lote"`
	DataValidade  *time.Time          `json:"data_validade"`
	PrecoUnitario decimal.NullDecimal `json:"preco_unitario"`
	NotaFiscal    string              `json:"nota_fiscal"`
	Observacoes   string              `json:"observacoes"`
}

// DistribuicaoInput moves stock between two locations.
type DistribuicaoInput struct {
	ProdutoID  string          `json:"produto_id" validate:"required"`
	Quantidade decimal.Decimal `json:"quantidade" validate:"gt=0"`
	Origem     domain.LocalRef `json:"origem"`
	Destino    domain.LocalRef `json:"destino"`
	// InterCentral asks for a destino outside the actor's central; only
	// locations flagged can_receive_inter_central accept it.
	InterCentral bool   `json:"inter_central"`
	Observacoes  string `json:"observacoes"`
}

// ConsumoInput consumes stock at a setor. operador_setor always consumes at
// its own setor; other roles name it.
type ConsumoInput struct {
	ProdutoID   string          `json:"produto_id" validate:"required"`
	Quantidade  decimal.Decimal `json:"quantidade" validate:"gt=0"`
	SetorID     string          `json:"setor_id"`
	Observacoes string          `json:"observacoes"`
}

// EstornoInput returns stock from a setor to a location that distributed
// the product to it.
type EstornoInput struct {
	ProdutoID   string          `json:"produto_id" validate:"required"`
	Quantidade  decimal.Decimal `json:"quantidade" validate:"gt=0"`
	SetorID     string          `json:"setor_id" validate:"required"`
	Destino     domain.LocalRef `json:"destino"`
	Observacoes string          `json:"observacoes"`
}

// SaidaJustificadaInput removes stock for a stated reason (loss, expiry).
type SaidaJustificadaInput struct {
	ProdutoID  string          `json:"produto_id" validate:"required"`
	Quantidade decimal.Decimal `json:"quantidade" validate:"gt=0"`
	Origem     domain.LocalRef `json:"origem"`
	Motivo     string          `json:"motivo" validate:"required,max=500"`
}

// MovimentacaoQuery filters the movement log.
type MovimentacaoQuery struct {
	ProdutoID string
	Tipo      domain.MovimentacaoTipo
	LocalTipo domain.LocalTipo
	LocalID   string
	From      *time.Time
	To        *time.Time
	Page      domain.Page
}

// template starts a movement log entry for the actor.
func (s *MovimentacaoService) template(a *actor.Actor, tipo domain.MovimentacaoTipo, obs string) *domain.Movimentacao {
	return &domain.Movimentacao{
		Tipo:               tipo,
		DataMovimentacao:   s.now().UTC(),
		UsuarioID:          a.ID,
		UsuarioResponsavel: a.DisplayName(),
		Observacoes:        strings.TrimSpace(obs),
	}
}

// produto loads a product and checks the actor's category restriction.
func (s *MovimentacaoService) produto(ctx context.Context, a *actor.Actor, id string) (*domain.Produto, error) {
	p, err := s.Store.Produtos().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanUseCategoria(a, p.CategoriaID).Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// Entrada credits the destino and records the lote.
func (s *MovimentacaoService) Entrada(ctx context.Context, in EntradaInput) (*ledger.Result, error) {
	a, err := s.authorize(ctx, permissions.MovimentacoesEntrada)
	if err != nil {
		return nil, err
	}
	destino, err := s.local(ctx, in.Destino)
	if err != nil {
		return nil, err
	}
	if err := s.check(s.Policy.CanActOn(ctx, a, destino.Tipo, destino.ID)); err != nil {
		return nil, err
	}
	p, err := s.produto(ctx, a, in.ProdutoID)
	if err != nil {
		return nil, err
	}

	m := s.template(a, domain.MovEntrada, in.Observacoes)
	m.NotaFiscal = in.NotaFiscal
	m.Lote = strings.TrimSpace(in.Lote)

	var res *ledger.Result
	err = s.Store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if res, err = s.Ledger.Receive(ctx, p, destino, in.Quantidade, m); err != nil {
			return err
		}
		if m.Lote == "" {
			return nil
		}
		return s.recordLote(ctx, p, destino, in)
	})
	if err != nil {
		return nil, err
	}

	s.publishResult(ctx, res)
	s.logger.For(ctx).Info().
		Str("produto_id", p.ID).
		Str("destino_id", destino.ID).
		Str("quantidade", in.Quantidade.String()).
		Msg("entrada registered")
	return res, nil
}

// recordLote adds the entrada to an existing lote or creates it. A lote lives
// at one location; reusing its number elsewhere is a Conflict.
func (s *MovimentacaoService) recordLote(ctx context.Context, p *domain.Produto, destino *domain.Local, in EntradaInput) error {
	numero := strings.TrimSpace(in.Lote)
	lote, err := s.Store.Lotes().FindByNumero(ctx, p.AllForms(), numero)
	switch {
	case err == nil:
		if lote.LocalTipo != destino.Tipo || !destino.Is(lote.LocalID) {
			return errors.ConflictWithKey("errors.lote_outro_local", map[string]string{"numero_lote": numero})
		}
		lote.QuantidadeAtual = lote.QuantidadeAtual.Add(in.Quantidade)
		lote.QuantidadeInicial = lote.QuantidadeInicial.Add(in.Quantidade)
		if in.DataValidade != nil {
			lote.DataValidade = in.DataValidade
		}
		if in.PrecoUnitario.Valid {
			lote.PrecoUnitario = in.PrecoUnitario
		}
		return s.Store.Lotes().Update(ctx, lote)
	case errors.Is(err, errors.ErrNotFound):
		return s.Store.Lotes().Create(ctx, &domain.Lote{
			ProdutoID:         p.ID,
			NumeroLote:        numero,
			QuantidadeInicial: in.Quantidade,
			QuantidadeAtual:   in.Quantidade,
			DataValidade:      in.DataValidade,
			PrecoUnitario:     in.PrecoUnitario,
			LocalTipo:         destino.Tipo,
			LocalID:           destino.ID,
			CentralID:         p.CentralID,
			NotaFiscal:        in.NotaFiscal,
		})
	default:
		return err
	}
}

// Distribuicao moves stock from origem to destino. A destino outside the
// actor's scope is accepted only when it receives from other centrais.
func (s *MovimentacaoService) Distribuicao(ctx context.Context, in DistribuicaoInput) (*ledger.Result, error) {
	a, err := s.authorize(ctx, permissions.MovimentacoesDistribuicao)
	if err != nil {
		return nil, err
	}
	origem, err := s.local(ctx, in.Origem)
	if err != nil {
		return nil, err
	}
	destino, err := s.local(ctx, in.Destino)
	if err != nil {
		return nil, err
	}
	if err := s.check(s.Policy.CanActOn(ctx, a, origem.Tipo, origem.ID)); err != nil {
		return nil, err
	}
	if err := s.check(s.Policy.CanReceive(ctx, a, destino, in.InterCentral)); err != nil {
		return nil, err
	}
	p, err := s.produto(ctx, a, in.ProdutoID)
	if err != nil {
		return nil, err
	}

	m := s.template(a, transferTipo(destino), in.Observacoes)
	res, err := s.Ledger.Transfer(ctx, p, origem, destino, in.Quantidade, m)
	if err != nil {
		return nil, err
	}

	s.publishResult(ctx, res)
	s.logger.For(ctx).Info().
		Str("produto_id", p.ID).
		Str("origem_id", origem.ID).
		Str("destino_id", destino.ID).
		Str("quantidade", in.Quantidade.String()).
		Msg("distribuicao registered")
	return res, nil
}

// transferTipo logs movements into a setor as distribuicao and movements
// between stock holding locations as transferencia.
func transferTipo(destino *domain.Local) domain.MovimentacaoTipo {
	if destino.Tipo == domain.LocalSetor {
		return domain.MovDistribuicao
	}
	return domain.MovTransferencia
}

// Consumo issues stock at a setor.
func (s *MovimentacaoService) Consumo(ctx context.Context, in ConsumoInput) (*ledger.Result, error) {
	a, err := s.authorize(ctx, permissions.MovimentacoesConsumo)
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
	p, err := s.produto(ctx, a, in.ProdutoID)
	if err != nil {
		return nil, err
	}

	m := s.template(a, domain.MovSaida, in.Observacoes)
	res, err := s.Ledger.Issue(ctx, p, setor, in.Quantidade, m)
	if err != nil {
		return nil, err
	}

	s.publishResult(ctx, res)
	s.logger.For(ctx).Info().
		Str("produto_id", p.ID).
		Str("setor_id", setor.ID).
		Str("quantidade", in.Quantidade.String()).
		Msg("consumo registered")
	return res, nil
}

// EstornoDistribuicao reverses a distribuicao: the setor sends stock back to
// a location that previously distributed the product to it.
func (s *MovimentacaoService) EstornoDistribuicao(ctx context.Context, in EstornoInput) (*ledger.Result, error) {
	a, err := s.authorize(ctx, permissions.MovimentacoesEstorno)
	if err != nil {
		return nil, err
	}
	setor, err := s.local(ctx, domain.LocalRef{Tipo: domain.LocalSetor, ID: in.SetorID})
	if err != nil {
		return nil, err
	}
	destino, err := s.local(ctx, in.Destino)
	if err != nil {
		return nil, err
	}
	if err := s.check(s.Policy.CanActOn(ctx, a, setor.Tipo, setor.ID)); err != nil {
		return nil, err
	}
	p, err := s.produto(ctx, a, in.ProdutoID)
	if err != nil {
		return nil, err
	}

	ok, err := s.Store.Movimentacoes().ExistsDistribuicao(ctx, p.AllForms(), destino.Forms(), setor.Forms())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.InvalidField("destino", "nenhuma distribuição deste produto partiu deste local para o setor")
	}

	m := s.template(a, domain.MovEstornoDistribuicao, in.Observacoes)
	res, err := s.Ledger.Transfer(ctx, p, setor, destino, in.Quantidade, m)
	if err != nil {
		return nil, err
	}

	s.publishResult(ctx, res)
	s.logger.For(ctx).Info().
		Str("produto_id", p.ID).
		Str("setor_id", setor.ID).
		Str("destino_id", destino.ID).
		Str("quantidade", in.Quantidade.String()).
		Msg("estorno registered")
	return res, nil
}

// SaidaJustificada removes stock from origem with a justification.
func (s *MovimentacaoService) SaidaJustificada(ctx context.Context, in SaidaJustificadaInput) (*ledger.Result, error) {
	a, err := s.authorize(ctx, permissions.MovimentacoesSaidaJustificada)
	if err != nil {
		return nil, err
	}
	motivo := strings.TrimSpace(in.Motivo)
	if motivo == "" {
		return nil, errors.InvalidField("motivo", "validation.required")
	}
	origem, err := s.local(ctx, in.Origem)
	if err != nil {
		return nil, err
	}
	if err := s.check(s.Policy.CanActOn(ctx, a, origem.Tipo, origem.ID)); err != nil {
		return nil, err
	}
	p, err := s.produto(ctx, a, in.ProdutoID)
	if err != nil {
		return nil, err
	}

	m := s.template(a, domain.MovSaidaJustificada, "")
	m.Justificativa = motivo
	res, err := s.Ledger.Issue(ctx, p, origem, in.Quantidade, m)
	if err != nil {
		return nil, err
	}

	s.publishResult(ctx, res)
	s.logger.For(ctx).Info().
		Str("produto_id", p.ID).
		Str("origem_id", origem.ID).
		Str("quantidade", in.Quantidade.String()).
		Msg("saida justificada registered")
	return res, nil
}

// List lists movements inside the actor's scope, newest first. An
// admin_central sees its central's movements.
func (s *MovimentacaoService) List(ctx context.Context, q MovimentacaoQuery) ([]*domain.Movimentacao, int64, error) {
	a, err := s.authorize(ctx, permissions.MovimentacoesRead)
	if err != nil {
		return nil, 0, err
	}
	scope, err := s.scope(ctx, a)
	if err != nil {
		return nil, 0, err
	}
	if q.Tipo != "" && !q.Tipo.Valid() {
		return nil, 0, errors.InvalidField("tipo", "validation.invalid")
	}

	f := store.MovimentacaoFilter{Scope: scope, Tipo: q.Tipo, From: q.From, To: q.To, Page: q.Page}
	if f.ProdutoForms, err = s.produtoForms(ctx, q.ProdutoID); err != nil {
		return nil, 0, err
	}
	if f.LocalForms, err = s.localForms(ctx, q.LocalTipo, q.LocalID); err != nil {
		return nil, 0, err
	}
	return s.Store.Movimentacoes().List(ctx, f)
}
