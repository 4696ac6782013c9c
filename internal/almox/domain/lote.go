package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lote is a tracked batch of a product at one location. Its quantity is a
// secondary record: only lote edits and deletes push deltas into the balance.
type Lote struct {
	ID                uuid.UUID           `db:"id" json:"id"`
	ProdutoID         string              `db:"produto_id" json:"produto_id"`
	NumeroLote        string              `db:"numero_lote" json:"numero_lote"`
	QuantidadeInicial decimal.Decimal     `db:"quantidade_inicial" json:"quantidade_inicial"`
	QuantidadeAtual   decimal.Decimal     `db:"quantidade_atual" json:"quantidade_atual"`
	DataValidade      *time.Time          `db:"data_validade" json:"data_validade,omitempty"`
	PrecoUnitario     decimal.NullDecimal `db:"preco_unitario" json:"preco_unitario"`
	LocalTipo         LocalTipo           `db:"local_tipo" json:"local_tipo"`
	LocalID           string              `db:"local_id" json:"local_id"`
	CentralID         string              `db:"central_id" json:"central_id,omitempty"`
	NotaFiscal        string              `db:"nota_fiscal" json:"nota_fiscal,omitempty"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at" json:"updated_at"`
}

// Vencido reports whether the batch expired before now.
func (l *Lote) Vencido(now time.Time) bool {
	return l.DataValidade != nil && l.DataValidade.Before(now)
}
