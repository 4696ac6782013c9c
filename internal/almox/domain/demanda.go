package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/almoxsms/almox-backend/internal/almox/identity"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DemandaStatus moves pendente -> parcial -> atendido and never back.
type DemandaStatus string

const (
	DemandaPendente DemandaStatus = "pendente"
	DemandaParcial  DemandaStatus = "parcial"
	DemandaAtendido DemandaStatus = "atendido"
)

func (s DemandaStatus) rank() int {
	switch s {
	case DemandaParcial:
		return 1
	case DemandaAtendido:
		return 2
	default:
		return 0
	}
}

// DemandaItem is one requested line.
type DemandaItem struct {
	ProdutoID  string          `json:"produto_id"`
	Quantidade decimal.Decimal `json:"quantidade"`
	Atendido   decimal.Decimal `json:"atendido"`
	Observacao string          `json:"observacao,omitempty"`
}

// Restante is what is still owed on the line.
func (i DemandaItem) Restante() decimal.Decimal {
	r := i.Quantidade.Sub(i.Atendido)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// AtendimentoItem is one product delivered in a fulfillment batch.
type AtendimentoItem struct {
	ProdutoID  string          `json:"produto_id"`
	Quantidade decimal.Decimal `json:"quantidade"`
}

// Atendimento records one fulfillment batch.
type Atendimento struct {
	AtendidoPor string            `json:"atendido_por"`
	OrigemTipo  LocalTipo         `json:"origem_tipo"`
	OrigemID    string            `json:"origem_id"`
	Items       []AtendimentoItem `json:"items"`
	CreatedAt   time.Time         `json:"created_at"`
}

// DemandaItems is stored as JSONB.
type DemandaItems []DemandaItem

func (d DemandaItems) Value() (driver.Value, error) { return jsonValue(d) }
func (d *DemandaItems) Scan(src any) error          { return jsonScan(src, d) }

// Atendimentos is stored as JSONB.
type Atendimentos []Atendimento

func (a Atendimentos) Value() (driver.Value, error) { return jsonValue(a) }
func (a *Atendimentos) Scan(src any) error          { return jsonScan(src, a) }

// Demanda is a setor's supply request. The ancestor chain is captured at
// creation.
type Demanda struct {
	ID                uuid.UUID     `db:"id" json:"id"`
	SetorID           string        `db:"setor_id" json:"setor_id"`
	CentralID         string        `db:"central_id" json:"central_id,omitempty"`
	AlmoxarifadoID    string        `db:"almoxarifado_id" json:"almoxarifado_id,omitempty"`
	SubAlmoxarifadoID string        `db:"sub_almoxarifado_id" json:"sub_almoxarifado_id,omitempty"`
	DestinoTipo       LocalTipo     `db:"destino_tipo" json:"destino_tipo"`
	Status            DemandaStatus `db:"status" json:"status"`
	Items             DemandaItems  `db:"items" json:"items"`
	Atendimentos      Atendimentos  `db:"atendimentos" json:"atendimento"`
	Observacoes       string        `db:"observacoes" json:"observacoes,omitempty"`
	CriadoPor         string        `db:"criado_por" json:"criado_por"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// DeriveStatus is pendente when nothing was delivered, atendido when every
// line is complete, parcial otherwise.
func DeriveStatus(items []DemandaItem) DemandaStatus {
	some, all := false, true
	for _, it := range items {
		if it.Atendido.IsPositive() {
			some = true
		}
		if it.Atendido.LessThan(it.Quantidade) {
			all = false
		}
	}
	switch {
	case len(items) > 0 && all:
		return DemandaAtendido
	case some:
		return DemandaParcial
	default:
		return DemandaPendente
	}
}

// Deletable reports whether the demanda can still be removed.
func (d *Demanda) Deletable() bool {
	return d.Status != DemandaAtendido && len(d.Atendimentos) == 0
}

// CheckAtendimento validates a batch against what is still owed without
// changing anything. Repeated products add up.
func (d *Demanda) CheckAtendimento(items []AtendimentoItem) error {
	if len(items) == 0 {
		return errors.InvalidField("items", "validation.required")
	}
	pending := make(map[int]decimal.Decimal)
	for n, it := range items {
		field := fmt.Sprintf("items[%d].quantidade", n)
		if !it.Quantidade.IsPositive() {
			return errors.InvalidField(field, "validation.positive")
		}
		idx := d.lineFor(it.ProdutoID)
		if idx < 0 {
			return errors.InvalidField(fmt.Sprintf("items[%d].produto_id", n), "validation.invalid")
		}
		pending[idx] = pending[idx].Add(it.Quantidade)
		if restante := d.Items[idx].Restante(); pending[idx].GreaterThan(restante) {
			return errors.InvalidField(field,
				fmt.Sprintf("quantidade %s excede o restante %s", pending[idx], restante))
		}
	}
	return nil
}

// ApplyAtendimento records a validated batch: bumps atendido per line,
// appends the atendimento and recomputes the status.
func (d *Demanda) ApplyAtendimento(a Atendimento) error {
	if err := d.CheckAtendimento(a.Items); err != nil {
		return err
	}
	before := d.Status
	for _, it := range a.Items {
		idx := d.lineFor(it.ProdutoID)
		d.Items[idx].Atendido = d.Items[idx].Atendido.Add(it.Quantidade)
	}
	d.Atendimentos = append(d.Atendimentos, a)

	next := DeriveStatus(d.Items)
	if next.rank() < before.rank() {
		next = before
	}
	d.Status = next
	d.UpdatedAt = a.CreatedAt
	return nil
}

func (d *Demanda) lineFor(produtoID string) int {
	for i, line := range d.Items {
		if identity.Matches(produtoID, line.ProdutoID) {
			return i
		}
	}
	return -1
}

func jsonValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonScan(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON source %T", src)
	}
}
