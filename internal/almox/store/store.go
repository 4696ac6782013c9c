// Package store declares the persistence boundary of the almox domain.
// Services depend on these interfaces; repository implements them on
// Postgres and memstore in memory.
package store

import (
	"context"
	"time"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store groups the per-entity stores and the transaction boundary.
type Store interface {
	Locais() LocalStore
	Categorias() CategoriaStore
	Produtos() ProdutoStore
	Estoques() EstoqueStore
	Movimentacoes() MovimentacaoStore
	Lotes() LoteStore
	Demandas() DemandaStore
	Usuarios() UsuarioStore
	Alertas() AlertaStore

	// WithinTx runs fn atomically. Store calls made with the ctx passed to fn
	// join the transaction; nested calls reuse the outer one.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// LocalFilter narrows a location listing. Empty fields do not filter.
type LocalFilter struct {
	Tipo               domain.LocalTipo
	IDs                []string
	CentralIDs         []string
	AlmoxarifadoIDs    []string
	SubAlmoxarifadoIDs []string
	InterCentral       bool
	Search             string
}

type LocalStore interface {
	Create(ctx context.Context, l *domain.Local) error
	Get(ctx context.Context, tipo domain.LocalTipo, id string) (*domain.Local, error)
	List(ctx context.Context, f LocalFilter) ([]*domain.Local, error)
	Update(ctx context.Context, l *domain.Local) error
	Delete(ctx context.Context, tipo domain.LocalTipo, id string) error
}

type CategoriaStore interface {
	Create(ctx context.Context, c *domain.Categoria) error
	Get(ctx context.Context, id string) (*domain.Categoria, error)
	List(ctx context.Context) ([]*domain.Categoria, error)
	Update(ctx context.Context, c *domain.Categoria) error
	Delete(ctx context.Context, id string) error
}

// ProdutoFilter narrows a product listing.
type ProdutoFilter struct {
	CentralID   string
	CategoriaID string
	// Search matches nome, codigo or any id form.
	Search string
	IDs    []string
	Page   domain.Page
}

type ProdutoStore interface {
	Create(ctx context.Context, p *domain.Produto) error
	// Get accepts any id form or the product code.
	Get(ctx context.Context, id string) (*domain.Produto, error)
	List(ctx context.Context, f ProdutoFilter) ([]*domain.Produto, int64, error)
	Update(ctx context.Context, p *domain.Produto) error
	Delete(ctx context.Context, id string) error
	AppendObservacao(ctx context.Context, id, line string) error
	CodigosWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Placement addresses one balance. The forms slices hold every identity
// form the row might have been written under; ProdutoID and LocalID are the
// canonical ids written on insert.
type Placement struct {
	ProdutoID    string
	ProdutoForms []string
	LocalTipo    domain.LocalTipo
	LocalID      string
	LocalForms   []string
	Links        domain.Chain
}

// EstoqueFilter narrows a balance listing. Status is applied after
// classification with LowRatio.
type EstoqueFilter struct {
	Scope        domain.Scope
	ProdutoForms []string
	LocalTipo    domain.LocalTipo
	LocalForms   []string
	Status       domain.EstoqueStatus
	LowRatio     decimal.Decimal
	Page         domain.Page
}

type EstoqueStore interface {
	// Credit increments the balance, creating it on first use.
	Credit(ctx context.Context, p Placement, amount decimal.Decimal) (*domain.Estoque, error)
	// Debit decrements atomically only when the available quantity covers
	// amount; otherwise it returns InsufficientBalance and changes nothing.
	Debit(ctx context.Context, p Placement, amount decimal.Decimal) (*domain.Estoque, error)
	// DebitClamped decrements down to zero at most.
	DebitClamped(ctx context.Context, p Placement, amount decimal.Decimal) (*domain.Estoque, error)
	Find(ctx context.Context, p Placement) (*domain.Estoque, error)
	List(ctx context.Context, f EstoqueFilter) ([]*domain.Estoque, int64, error)
	DeleteByProduto(ctx context.Context, produtoForms []string) (int64, error)
}

// MovimentacaoFilter narrows the movement log.
type MovimentacaoFilter struct {
	Scope        domain.Scope
	ProdutoForms []string
	Tipo         domain.MovimentacaoTipo
	// LocalForms matches origem or destino.
	LocalForms []string
	From       *time.Time
	To         *time.Time
	Page       domain.Page
}

type MovimentacaoStore interface {
	Append(ctx context.Context, m *domain.Movimentacao) error
	List(ctx context.Context, f MovimentacaoFilter) ([]*domain.Movimentacao, int64, error)
	// ExistsDistribuicao reports a prior distribuicao of the product from
	// origem to destino.
	ExistsDistribuicao(ctx context.Context, produtoForms, origemForms, destinoForms []string) (bool, error)
	DeleteByProduto(ctx context.Context, produtoForms []string) (int64, error)
	CountSince(ctx context.Context, scope domain.Scope, since time.Time) (int64, error)
}

type LoteStore interface {
	Create(ctx context.Context, l *domain.Lote) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Lote, error)
	FindByNumero(ctx context.Context, produtoForms []string, numero string) (*domain.Lote, error)
	ListByProduto(ctx context.Context, produtoForms []string) ([]*domain.Lote, error)
	Update(ctx context.Context, l *domain.Lote) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// DemandaFilter narrows a demanda listing.
type DemandaFilter struct {
	Scope   domain.Scope
	SetorID string
	Status  domain.DemandaStatus
	Page    domain.Page
}

type DemandaStore interface {
	Create(ctx context.Context, d *domain.Demanda) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Demanda, error)
	// GetForUpdate is Get holding a row lock for the rest of the transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Demanda, error)
	List(ctx context.Context, f DemandaFilter) ([]*domain.Demanda, int64, error)
	Update(ctx context.Context, d *domain.Demanda) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context, scope domain.Scope) (map[domain.DemandaStatus]int64, error)
}

// UsuarioFilter narrows a user listing.
type UsuarioFilter struct {
	Role     domain.Role
	ScopeIDs []string
	Search   string
}

type UsuarioStore interface {
	Create(ctx context.Context, u *domain.Usuario) error
	Get(ctx context.Context, id string) (*domain.Usuario, error)
	// GetByLogin matches email or username, case-insensitively.
	GetByLogin(ctx context.Context, login string) (*domain.Usuario, error)
	List(ctx context.Context, f UsuarioFilter) ([]*domain.Usuario, error)
	Update(ctx context.Context, u *domain.Usuario) error
	Delete(ctx context.Context, id string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// AlertaFilter narrows an alerta listing.
type AlertaFilter struct {
	Scope     domain.Scope
	Resolvido *bool
	ProdutoID string
	Page      domain.Page
}

type AlertaStore interface {
	// Open creates the open alerta of a balance or refreshes it.
	Open(ctx context.Context, a *domain.Alerta) error
	// ResolveFor closes the open alerta of a balance, if any.
	ResolveFor(ctx context.Context, produtoID string, tipo domain.LocalTipo, localID, by string) error
	Resolve(ctx context.Context, id uuid.UUID, by string) (*domain.Alerta, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Alerta, error)
	List(ctx context.Context, f AlertaFilter) ([]*domain.Alerta, int64, error)
}
