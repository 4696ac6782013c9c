// Package ledger keeps per-location stock balances and the movement log in
// step. Only entrada adds stock, transfers are zero-sum and saidas remove
// it; balances never go negative.
package ledger

import (
	"context"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/hierarchy"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Ledger applies balance mutations.
type Ledger struct {
	store    store.Store
	resolver *hierarchy.Resolver
	ratio    decimal.Decimal
}

// New creates a ledger. A non-positive ratio falls back to the default
// low stock ratio.
func New(s store.Store, resolver *hierarchy.Resolver, lowStockRatio decimal.Decimal) *Ledger {
	if !lowStockRatio.IsPositive() {
		lowStockRatio = domain.DefaultLowStockRatio
	}
	return &Ledger{store: s, resolver: resolver, ratio: lowStockRatio}
}

// Ratio is the configured low stock ratio.
func (l *Ledger) Ratio() decimal.Decimal { return l.ratio }

// Classify computes a balance status with the configured ratio.
func (l *Ledger) Classify(e *domain.Estoque) domain.EstoqueStatus {
	return domain.Classify(*e, l.ratio)
}

// Result is what a ledger operation changed.
type Result struct {
	Movimentacao *domain.Movimentacao
	Balances     []*domain.Estoque
}

// Placement addresses the balance of produto at local under every identity
// form either may have been stored with.
func (l *Ledger) Placement(ctx context.Context, produto *domain.Produto, local *domain.Local) (store.Placement, error) {
	chain, err := l.resolver.ResolveChain(ctx, local)
	if err != nil {
		return store.Placement{}, err
	}
	return store.Placement{
		ProdutoID:    produto.ID,
		ProdutoForms: produto.AllForms(),
		LocalTipo:    local.Tipo,
		LocalID:      local.ID,
		LocalForms:   local.Forms(),
		Links:        chain,
	}, nil
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.InvalidField("quantidade", "validation.positive")
	}
	return nil
}

// Credit increments the balance, creating it on first use.
func (l *Ledger) Credit(ctx context.Context, produto *domain.Produto, local *domain.Local, amount decimal.Decimal) (*domain.Estoque, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	p, err := l.Placement(ctx, produto, local)
	if err != nil {
		return nil, err
	}
	return l.store.Estoques().Credit(ctx, p, amount)
}

// Debit decrements the balance in one conditional update. A balance that
// does not cover amount yields InsufficientBalance with the available
// quantity.
func (l *Ledger) Debit(ctx context.Context, produto *domain.Produto, local *domain.Local, amount decimal.Decimal) (*domain.Estoque, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	p, err := l.Placement(ctx, produto, local)
	if err != nil {
		return nil, err
	}
	return l.store.Estoques().Debit(ctx, p, amount)
}

// DebitClamped decrements down to zero at most. Used by forced lote removal.
func (l *Ledger) DebitClamped(ctx context.Context, produto *domain.Produto, local *domain.Local, amount decimal.Decimal) (*domain.Estoque, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	p, err := l.Placement(ctx, produto, local)
	if err != nil {
		return nil, err
	}
	return l.store.Estoques().DebitClamped(ctx, p, amount)
}

// stamp completes a movement template with the product and quantity.
func stamp(m *domain.Movimentacao, produto *domain.Produto, amount decimal.Decimal) {
	m.ProdutoID = produto.ID
	m.Quantidade = amount
	if m.CentralID == "" {
		m.CentralID = produto.CentralID
	}
}

// Receive credits destino and logs the entrada.
func (l *Ledger) Receive(ctx context.Context, produto *domain.Produto, destino *domain.Local, amount decimal.Decimal, m *domain.Movimentacao) (*Result, error) {
	stamp(m, produto, amount)
	m.SetDestino(destino)
	if err := m.Validate(); err != nil {
		return nil, err
	}

	res := &Result{Movimentacao: m}
	err := l.store.WithinTx(ctx, func(ctx context.Context) error {
		e, err := l.Credit(ctx, produto, destino, amount)
		if err != nil {
			return err
		}
		res.Balances = append(res.Balances, e)
		return l.store.Movimentacoes().Append(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Issue debits origem and logs the saida.
func (l *Ledger) Issue(ctx context.Context, produto *domain.Produto, origem *domain.Local, amount decimal.Decimal, m *domain.Movimentacao) (*Result, error) {
	stamp(m, produto, amount)
	m.SetOrigem(origem)
	if err := m.Validate(); err != nil {
		return nil, err
	}

	res := &Result{Movimentacao: m}
	err := l.store.WithinTx(ctx, func(ctx context.Context) error {
		e, err := l.Debit(ctx, produto, origem, amount)
		if err != nil {
			return err
		}
		res.Balances = append(res.Balances, e)
		return l.store.Movimentacoes().Append(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Transfer moves amount from origem to destino and logs one movement. The
// debit, credit and log entry commit together or not at all.
func (l *Ledger) Transfer(ctx context.Context, produto *domain.Produto, origem, destino *domain.Local, amount decimal.Decimal, m *domain.Movimentacao) (*Result, error) {
	stamp(m, produto, amount)
	m.SetOrigem(origem)
	m.SetDestino(destino)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if origem.Tipo == destino.Tipo && origem.Is(destino.ID) {
		return nil, errors.InvalidField("destino_id", "validation.destino_igual_origem")
	}

	res := &Result{Movimentacao: m}
	err := l.store.WithinTx(ctx, func(ctx context.Context) error {
		out, err := l.Debit(ctx, produto, origem, amount)
		if err != nil {
			return err
		}
		in, err := l.Credit(ctx, produto, destino, amount)
		if err != nil {
			return err
		}
		res.Balances = append(res.Balances, out, in)
		return l.store.Movimentacoes().Append(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
