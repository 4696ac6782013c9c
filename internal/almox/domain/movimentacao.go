package domain

import (
	"time"

	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovimentacaoTipo is the kind of a movement log entry.
type MovimentacaoTipo string

const (
	MovEntrada             MovimentacaoTipo = "entrada"
	MovDistribuicao        MovimentacaoTipo = "distribuicao"
	MovTransferencia       MovimentacaoTipo = "transferencia"
	MovSaida               MovimentacaoTipo = "saida"
	MovEstornoDistribuicao MovimentacaoTipo = "estorno_distribuicao"
	MovSaidaJustificada    MovimentacaoTipo = "saida_justificada"
)

// Valid reports whether t is a known movement kind.
func (t MovimentacaoTipo) Valid() bool {
	switch t {
	case MovEntrada, MovDistribuicao, MovTransferencia, MovSaida, MovEstornoDistribuicao, MovSaidaJustificada:
		return true
	}
	return false
}

// Family expands a filter value: "saida" also matches "saida_justificada".
func (t MovimentacaoTipo) Family() []MovimentacaoTipo {
	if t == MovSaida {
		return []MovimentacaoTipo{MovSaida, MovSaidaJustificada}
	}
	return []MovimentacaoTipo{t}
}

// Movimentacao is an immutable movement log entry. Location names are
// denormalized at write time.
type Movimentacao struct {
	ID                 uuid.UUID        `db:"id" json:"id"`
	ProdutoID          string           `db:"produto_id" json:"produto_id"`
	Tipo               MovimentacaoTipo `db:"tipo" json:"tipo"`
	Quantidade         decimal.Decimal  `db:"quantidade" json:"quantidade"`
	DataMovimentacao   time.Time        `db:"data_movimentacao" json:"data_movimentacao"`
	OrigemTipo         string           `db:"origem_tipo" json:"origem_tipo,omitempty"`
	OrigemID           string           `db:"origem_id" json:"origem_id,omitempty"`
	OrigemNome         string           `db:"origem_nome" json:"origem_nome,omitempty"`
	DestinoTipo        string           `db:"destino_tipo" json:"destino_tipo,omitempty"`
	DestinoID          string           `db:"destino_id" json:"destino_id,omitempty"`
	DestinoNome        string           `db:"destino_nome" json:"destino_nome,omitempty"`
	CentralID          string           `db:"central_id" json:"central_id,omitempty"`
	UsuarioID          string           `db:"usuario_id" json:"usuario_id,omitempty"`
	UsuarioResponsavel string           `db:"usuario_responsavel" json:"usuario_responsavel"`
	NotaFiscal         string           `db:"nota_fiscal" json:"nota_fiscal,omitempty"`
	Lote               string           `db:"lote" json:"lote,omitempty"`
	Observacoes        string           `db:"observacoes" json:"observacoes,omitempty"`
	Justificativa      string           `db:"justificativa" json:"justificativa,omitempty"`
	DemandaID          string           `db:"demanda_id" json:"demanda_id,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
}

// SetOrigem records the source location and its display name.
func (m *Movimentacao) SetOrigem(l *Local) {
	m.OrigemTipo = string(l.Tipo)
	m.OrigemID = l.ID
	m.OrigemNome = l.Nome
}

// SetDestino records the target location and its display name.
func (m *Movimentacao) SetDestino(l *Local) {
	m.DestinoTipo = string(l.Tipo)
	m.DestinoID = l.ID
	m.DestinoNome = l.Nome
}

// Validate checks the fields every log entry must carry.
func (m *Movimentacao) Validate() error {
	switch {
	case m.ProdutoID == "":
		return errors.InvalidField("produto_id", "validation.required")
	case !m.Tipo.Valid():
		return errors.InvalidField("tipo", "validation.invalid")
	case !m.Quantidade.IsPositive():
		return errors.InvalidField("quantidade", "validation.positive")
	}
	return nil
}
