package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/permissions"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoteService manages lotes. Lote quantities are a secondary record: edits
// and removals push their delta into the balance at the lote's location.
type LoteService struct {
	core
	now func() time.Time
}

// NewLoteService creates a new lote service
func NewLoteService(d Deps) *LoteService {
	return &LoteService{core: newCore(d, "lote-service"), now: time.Now}
}

// LoteInput creates a lote record.
type LoteInput struct {
	NumeroLote    string              `json:"numero_lote" validate:"required,max=80"`
	Quantidade    decimal.Decimal     `json:"quantidade" validate:"gte=0"`
	DataValidade  *time.Time          `json:"data_validade"`
	PrecoUnitario decimal.NullDecimal `json:"preco_unitario"`
	Local         domain.LocalRef     `json:"local"`
	NotaFiscal    string              `json:"nota_fiscal"`
}

// LoteUpdate changes a lote. Nil fields stay as they are.
type LoteUpdate struct {
	QuantidadeAtual *decimal.Decimal    `json:"quantidade_atual"`
	DataValidade    *time.Time          `json:"data_validade"`
	PrecoUnitario   decimal.NullDecimal `json:"preco_unitario"`
	NotaFiscal      *string             `json:"nota_fiscal"`
}

// LoteDelete tunes the removal of a lote.
type LoteDelete struct {
	// Force lets super_admin remove a lote larger than the balance; the
	// balance is clamped at zero.
	Force bool
	// PurgeProduto (super_admin) also wipes every balance and movement of
	// the product.
	PurgeProduto bool
}

// ListByProduto lists a product's lotes, earliest expiry first.
func (s *LoteService) ListByProduto(ctx context.Context, produtoID string) ([]*domain.Lote, error) {
	if _, err := s.authorize(ctx, permissions.LotesRead); err != nil {
		return nil, err
	}
	p, err := s.Store.Produtos().Get(ctx, produtoID)
	if err != nil {
		return nil, err
	}
	return s.Store.Lotes().ListByProduto(ctx, p.AllForms())
}

// Get returns one lote.
func (s *LoteService) Get(ctx context.Context, id uuid.UUID) (*domain.Lote, error) {
	if _, err := s.authorize(ctx, permissions.LotesRead); err != nil {
		return nil, err
	}
	return s.Store.Lotes().Get(ctx, id)
}

// Create registers a lote without moving stock; entradas are the way to
// receive quantities.
func (s *LoteService) Create(ctx context.Context, produtoID string, in LoteInput) (*domain.Lote, error) {
	a, err := s.authorize(ctx, permissions.LotesWrite)
	if err != nil {
		return nil, err
	}
	p, err := s.Store.Produtos().Get(ctx, produtoID)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanManageProduto(a, p.CentralID).Err(); err != nil {
		return nil, err
	}
	local, err := s.local(ctx, in.Local)
	if err != nil {
		return nil, err
	}
	if err := s.check(s.Policy.CanActOn(ctx, a, local.Tipo, local.ID)); err != nil {
		return nil, err
	}

	l := &domain.Lote{
		ProdutoID:         p.ID,
		NumeroLote:        strings.TrimSpace(in.NumeroLote),
		QuantidadeInicial: in.Quantidade,
		QuantidadeAtual:   in.Quantidade,
		DataValidade:      in.DataValidade,
		PrecoUnitario:     in.PrecoUnitario,
		LocalTipo:         local.Tipo,
		LocalID:           local.ID,
		CentralID:         p.CentralID,
		NotaFiscal:        in.NotaFiscal,
	}
	if err := s.Store.Lotes().Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// target loads the lote with its product and location and checks the actor
// may act there.
func (s *LoteService) target(ctx context.Context, a *actor.Actor, id uuid.UUID) (*domain.Lote, *domain.Produto, *domain.Local, error) {
	l, err := s.Store.Lotes().Get(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := s.Store.Produtos().Get(ctx, l.ProdutoID)
	if err != nil {
		return nil, nil, nil, err
	}
	local, err := s.Store.Locais().Get(ctx, l.LocalTipo, l.LocalID)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := s.check(s.Policy.CanActOn(ctx, a, local.Tipo, local.ID)); err != nil {
		return nil, nil, nil, err
	}
	return l, p, local, nil
}

// Update changes a lote. A new quantidade_atual credits or debits the
// balance by the difference; non super_admin edits leave a [LOTE] line on
// the product.
func (s *LoteService) Update(ctx context.Context, id uuid.UUID, in LoteUpdate) (*domain.Lote, error) {
	a, err := s.authorize(ctx, permissions.LotesWrite)
	if err != nil {
		return nil, err
	}
	l, p, local, err := s.target(ctx, a, id)
	if err != nil {
		return nil, err
	}

	old := l.QuantidadeAtual
	if in.QuantidadeAtual != nil {
		if in.QuantidadeAtual.IsNegative() {
			return nil, errors.InvalidField("quantidade_atual", "validation.min")
		}
		l.QuantidadeAtual = *in.QuantidadeAtual
	}
	if in.DataValidade != nil {
		l.DataValidade = in.DataValidade
	}
	if in.PrecoUnitario.Valid {
		l.PrecoUnitario = in.PrecoUnitario
	}
	if in.NotaFiscal != nil {
		l.NotaFiscal = *in.NotaFiscal
	}
	delta := l.QuantidadeAtual.Sub(old)

	var balance *domain.Estoque
	err = s.Store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		switch {
		case delta.IsPositive():
			balance, err = s.Ledger.Credit(ctx, p, local, delta)
		case delta.IsNegative():
			balance, err = s.Ledger.Debit(ctx, p, local, delta.Neg())
		}
		if err != nil {
			return err
		}
		if err := s.Store.Lotes().Update(ctx, l); err != nil {
			return err
		}
		if delta.IsZero() || a.IsSuperAdmin() {
			return nil
		}
		line := fmt.Sprintf("[LOTE] %s %s: lote %s %s -> %s",
			s.now().Format("02/01/2006 15:04"), a.DisplayName(), l.NumeroLote, old, l.QuantidadeAtual)
		return s.Store.Produtos().AppendObservacao(ctx, p.ID, line)
	})
	if err != nil {
		return nil, err
	}

	s.publishBalances(ctx, balance)
	s.logger.For(ctx).Info().
		Str("lote_id", l.ID.String()).
		Str("produto_id", p.ID).
		Str("delta", delta.String()).
		Msg("lote updated")
	return l, nil
}

// Delete removes a lote and debits its quantity from the balance. With
// PurgeProduto the product's balances and movements go as well.
func (s *LoteService) Delete(ctx context.Context, id uuid.UUID, opts LoteDelete) error {
	a, err := s.authorize(ctx, permissions.LotesWrite)
	if err != nil {
		return err
	}
	if (opts.Force || opts.PurgeProduto) && !a.IsSuperAdmin() {
		return errors.Forbidden("apenas o super administrador pode forçar a exclusão")
	}
	l, p, local, err := s.target(ctx, a, id)
	if err != nil {
		return err
	}

	var balance *domain.Estoque
	var purged *LimpezaResult
	err = s.Store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Store.Lotes().Delete(ctx, l.ID); err != nil {
			return err
		}
		if opts.PurgeProduto {
			var err error
			if purged, err = purgeProduto(ctx, s.Store, p); err != nil {
				return err
			}
			line := fmt.Sprintf("[LIMPEZA] %s %s: lote %s excluído, %d estoque(s) e %d movimentação(ões) removidos",
				s.now().Format("02/01/2006 15:04"), a.DisplayName(), l.NumeroLote, purged.Estoques, purged.Movimentacoes)
			return s.Store.Produtos().AppendObservacao(ctx, p.ID, line)
		}
		if !l.QuantidadeAtual.IsPositive() {
			return nil
		}

		var err error
		balance, err = s.Ledger.Debit(ctx, p, local, l.QuantidadeAtual)
		if errors.Is(err, errors.ErrInsufficientBalance) && opts.Force {
			balance, err = s.Ledger.DebitClamped(ctx, p, local, l.QuantidadeAtual)
			if errors.Is(err, errors.ErrNotFound) {
				return nil
			}
		}
		return err
	})
	if err != nil {
		return err
	}

	s.publishBalances(ctx, balance)
	event := s.logger.For(ctx).Info().
		Str("lote_id", l.ID.String()).
		Str("produto_id", p.ID).
		Bool("force", opts.Force)
	if purged != nil {
		event = event.Int64("estoques_removidos", purged.Estoques).Int64("movimentacoes_removidas", purged.Movimentacoes)
	}
	event.Msg("lote deleted")
	return nil
}
