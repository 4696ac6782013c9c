package domain

import (
	"slices"

	"github.com/almoxsms/almox-backend/internal/almox/identity"
)

// Scope is the set of locations an actor may see, every id expanded to all
// of its identity forms. Unrestricted means no filtering at all; an empty
// restricted scope matches nothing.
type Scope struct {
	Unrestricted       bool
	CentralIDs         []string
	AlmoxarifadoIDs    []string
	SubAlmoxarifadoIDs []string
	SetorIDs           []string
}

// UnrestrictedScope is the super_admin scope.
func UnrestrictedScope() Scope {
	return Scope{Unrestricted: true}
}

// IsEmpty reports a restricted scope that allows nothing.
func (s Scope) IsEmpty() bool {
	return !s.Unrestricted &&
		len(s.CentralIDs) == 0 &&
		len(s.AlmoxarifadoIDs) == 0 &&
		len(s.SubAlmoxarifadoIDs) == 0 &&
		len(s.SetorIDs) == 0
}

// IDsFor returns the allowed ids of one location kind.
func (s Scope) IDsFor(tipo LocalTipo) []string {
	switch tipo {
	case LocalCentral:
		return s.CentralIDs
	case LocalAlmoxarifado:
		return s.AlmoxarifadoIDs
	case LocalSubAlmoxarifado:
		return s.SubAlmoxarifadoIDs
	case LocalSetor:
		return s.SetorIDs
	}
	return nil
}

// AllIDs is the union of every kind.
func (s Scope) AllIDs() []string {
	out := make([]string, 0, len(s.CentralIDs)+len(s.AlmoxarifadoIDs)+len(s.SubAlmoxarifadoIDs)+len(s.SetorIDs))
	out = append(out, s.CentralIDs...)
	out = append(out, s.AlmoxarifadoIDs...)
	out = append(out, s.SubAlmoxarifadoIDs...)
	return append(out, s.SetorIDs...)
}

// Contains reports whether the location (tipo, id) is inside the scope.
func (s Scope) Contains(tipo LocalTipo, id string) bool {
	if s.Unrestricted {
		return true
	}
	return contains(s.IDsFor(tipo), id)
}

// Add merges a location's forms into the matching set.
func (s *Scope) Add(tipo LocalTipo, forms ...string) {
	switch tipo {
	case LocalCentral:
		s.CentralIDs = appendNew(s.CentralIDs, forms...)
	case LocalAlmoxarifado:
		s.AlmoxarifadoIDs = appendNew(s.AlmoxarifadoIDs, forms...)
	case LocalSubAlmoxarifado:
		s.SubAlmoxarifadoIDs = appendNew(s.SubAlmoxarifadoIDs, forms...)
	case LocalSetor:
		s.SetorIDs = appendNew(s.SetorIDs, forms...)
	}
}

// MatchEstoque mirrors the SQL scope predicate on estoques: the typed
// local_tipo/local_id pair or any denormalized ancestor field.
func (s Scope) MatchEstoque(e *Estoque) bool {
	if s.Unrestricted {
		return true
	}
	return contains(s.IDsFor(e.LocalTipo), e.LocalID) ||
		contains(s.SetorIDs, e.SetorID) ||
		contains(s.SubAlmoxarifadoIDs, e.SubAlmoxarifadoID) ||
		contains(s.AlmoxarifadoIDs, e.AlmoxarifadoID) ||
		contains(s.CentralIDs, e.CentralID)
}

// MatchMovimentacao mirrors the SQL predicate on movimentacoes: the central
// or either endpoint.
func (s Scope) MatchMovimentacao(m *Movimentacao) bool {
	if s.Unrestricted {
		return true
	}
	all := s.AllIDs()
	return contains(s.CentralIDs, m.CentralID) ||
		contains(all, m.OrigemID) ||
		contains(all, m.DestinoID)
}

// MatchDemanda mirrors the SQL predicate on demandas.
func (s Scope) MatchDemanda(d *Demanda) bool {
	if s.Unrestricted {
		return true
	}
	return contains(s.SetorIDs, d.SetorID) ||
		contains(s.SubAlmoxarifadoIDs, d.SubAlmoxarifadoID) ||
		contains(s.AlmoxarifadoIDs, d.AlmoxarifadoID) ||
		contains(s.CentralIDs, d.CentralID)
}

// MatchAlerta mirrors the SQL predicate on alertas.
func (s Scope) MatchAlerta(a *Alerta) bool {
	if s.Unrestricted {
		return true
	}
	return contains(s.IDsFor(a.LocalTipo), a.LocalID) || contains(s.CentralIDs, a.CentralID)
}

func contains(set []string, id string) bool {
	if id == "" {
		return false
	}
	for _, candidate := range identity.Expand(id) {
		for _, s := range set {
			if s == candidate {
				return true
			}
		}
	}
	return false
}

func appendNew(set []string, forms ...string) []string {
	for _, f := range identity.ExpandAll(forms...) {
		if !slices.Contains(set, f) {
			set = append(set, f)
		}
	}
	return set
}
