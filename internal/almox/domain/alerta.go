package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Alerta flags a balance that went Baixo or Zerado. At most one open alerta
// exists per (produto, local).
type Alerta struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	ProdutoID            string          `db:"produto_id" json:"produto_id"`
	LocalTipo            LocalTipo       `db:"local_tipo" json:"local_tipo"`
	LocalID              string          `db:"local_id" json:"local_id"`
	CentralID            string          `db:"central_id" json:"central_id,omitempty"`
	Status               EstoqueStatus   `db:"status" json:"status"`
	QuantidadeDisponivel decimal.Decimal `db:"quantidade_disponivel" json:"quantidade_disponivel"`
	Resolvido            bool            `db:"resolvido" json:"resolvido"`
	ResolvidoEm          *time.Time      `db:"resolvido_em" json:"resolvido_em,omitempty"`
	ResolvidoPor         string          `db:"resolvido_por" json:"resolvido_por,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}
