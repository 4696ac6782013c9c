package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EstoqueStatus is computed on read, never stored.
type EstoqueStatus string

const (
	StatusNormal EstoqueStatus = "Normal"
	StatusBaixo  EstoqueStatus = "Baixo"
	StatusZerado EstoqueStatus = "Zerado"
)

// Valid reports whether s is a known status.
func (s EstoqueStatus) Valid() bool {
	return s == StatusNormal || s == StatusBaixo || s == StatusZerado
}

// ParseEstoqueStatus matches a status name case-insensitively. Unknown names
// are returned as given so Valid rejects them.
func ParseEstoqueStatus(raw string) EstoqueStatus {
	for _, s := range []EstoqueStatus{StatusNormal, StatusBaixo, StatusZerado} {
		if strings.EqualFold(raw, string(s)) {
			return s
		}
	}
	return EstoqueStatus(raw)
}

// DefaultLowStockRatio is the fraction of the baseline at or below which a balance is Baixo.
var DefaultLowStockRatio = decimal.NewFromFloat(0.10)

// Estoque is the balance of one product at one location. Quantidade and
// QuantidadeDisponivel are kept equal; QuantidadeInicial is the level reached
// by the last credit and drives the Baixo classification.
type Estoque struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	ProdutoID            string          `db:"produto_id" json:"produto_id"`
	LocalTipo            LocalTipo       `db:"local_tipo" json:"local_tipo"`
	LocalID              string          `db:"local_id" json:"local_id"`
	Quantidade           decimal.Decimal `db:"quantidade" json:"quantidade"`
	QuantidadeDisponivel decimal.Decimal `db:"quantidade_disponivel" json:"quantidade_disponivel"`
	QuantidadeInicial    decimal.Decimal `db:"quantidade_inicial" json:"quantidade_inicial"`

	CentralID         string `db:"central_id" json:"central_id,omitempty"`
	AlmoxarifadoID    string `db:"almoxarifado_id" json:"almoxarifado_id,omitempty"`
	SubAlmoxarifadoID string `db:"sub_almoxarifado_id" json:"sub_almoxarifado_id,omitempty"`
	SetorID           string `db:"setor_id" json:"setor_id,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Classify computes the stock status of a balance. Without a recorded
// baseline the current quantity is used.
func Classify(e Estoque, ratio decimal.Decimal) EstoqueStatus {
	if !e.QuantidadeDisponivel.IsPositive() {
		return StatusZerado
	}
	base := e.QuantidadeInicial
	if !base.IsPositive() {
		base = e.Quantidade
	}
	if e.QuantidadeDisponivel.LessThanOrEqual(base.Mul(ratio)) {
		return StatusBaixo
	}
	return StatusNormal
}

// Links returns the denormalized ancestry stored on the balance.
func (e *Estoque) Links() Chain {
	return Chain{
		CentralID:         e.CentralID,
		AlmoxarifadoID:    e.AlmoxarifadoID,
		SubAlmoxarifadoID: e.SubAlmoxarifadoID,
		SetorID:           e.SetorID,
	}
}

// SetLinks copies a resolved chain onto the balance.
func (e *Estoque) SetLinks(c Chain) {
	e.CentralID = c.CentralID
	e.AlmoxarifadoID = c.AlmoxarifadoID
	e.SubAlmoxarifadoID = c.SubAlmoxarifadoID
	e.SetorID = c.SetorID
}
