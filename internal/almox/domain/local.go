package domain

import (
	"time"

	"github.com/lib/pq"
)

// LocalTipo is the level of a location in the hierarchy.
type LocalTipo string

const (
	LocalCentral         LocalTipo = "central"
	LocalAlmoxarifado    LocalTipo = "almoxarifado"
	LocalSubAlmoxarifado LocalTipo = "sub_almoxarifado"
	LocalSetor           LocalTipo = "setor"
)

// LocalTipos lists the hierarchy from top to bottom.
var LocalTipos = []LocalTipo{LocalCentral, LocalAlmoxarifado, LocalSubAlmoxarifado, LocalSetor}

// Valid reports whether t is a known location kind.
func (t LocalTipo) Valid() bool {
	switch t {
	case LocalCentral, LocalAlmoxarifado, LocalSubAlmoxarifado, LocalSetor:
		return true
	}
	return false
}

// Local is any node of the Central > Almoxarifado > Sub-Almoxarifado > Setor
// hierarchy. Parent references hold canonical ids; which ones are used
// depends on Tipo.
type Local struct {
	Identity
	Tipo        LocalTipo `db:"tipo" json:"tipo"`
	Nome        string    `db:"nome" json:"nome"`
	Descricao   string    `db:"descricao" json:"descricao,omitempty"`
	Endereco    string    `db:"endereco" json:"endereco,omitempty"`
	Responsavel string    `db:"responsavel" json:"responsavel,omitempty"`
	Email       string    `db:"email" json:"email,omitempty"`

	CentralID          string         `db:"central_id" json:"central_id,omitempty"`
	AlmoxarifadoID     string         `db:"almoxarifado_id" json:"almoxarifado_id,omitempty"`
	SubAlmoxarifadoID  string         `db:"sub_almoxarifado_id" json:"sub_almoxarifado_id,omitempty"`
	SubAlmoxarifadoIDs pq.StringArray `db:"sub_almoxarifado_ids" json:"sub_almoxarifado_ids,omitempty"`

	CanReceiveInterCentral bool `db:"can_receive_inter_central" json:"can_receive_inter_central"`
	Ativo                  bool `db:"ativo" json:"ativo"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubLinks returns every sub-almoxarifado a setor points at, the list first.
func (l *Local) SubLinks() []string {
	var out []string
	seen := make(map[string]bool)
	for _, id := range append([]string(l.SubAlmoxarifadoIDs), l.SubAlmoxarifadoID) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Chain is the resolved ancestry of a location. Empty levels mean the link
// could not be derived.
type Chain struct {
	CentralID         string `json:"central_id,omitempty"`
	AlmoxarifadoID    string `json:"almoxarifado_id,omitempty"`
	SubAlmoxarifadoID string `json:"sub_almoxarifado_id,omitempty"`
	SetorID           string `json:"setor_id,omitempty"`
}

// LocalRef names a location by kind and id, as accepted at the boundary.
type LocalRef struct {
	Tipo LocalTipo `json:"tipo" validate:"required,oneof=central almoxarifado sub_almoxarifado setor"`
	ID   string    `json:"id" validate:"required"`
}
