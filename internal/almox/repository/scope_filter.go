package repository

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/lib/pq"
)

// matchNothing is the predicate of an empty restricted scope.
var matchNothing = sq.Expr("FALSE")

func inArray(col string, ids []string) sq.Sqlizer {
	return sq.Expr(col+" = ANY(?)", pq.Array(ids))
}

// typedLocal matches the local_tipo/local_id pair against the scope.
func typedLocal(s domain.Scope, tipoCol, idCol string) sq.Or {
	var or sq.Or
	for _, tipo := range domain.LocalTipos {
		if ids := s.IDsFor(tipo); len(ids) > 0 {
			or = append(or, sq.And{sq.Eq{tipoCol: string(tipo)}, inArray(idCol, ids)})
		}
	}
	return or
}

// fields ORs col = ANY(ids) for every non-empty id set.
func fields(pairs ...any) sq.Or {
	var or sq.Or
	for i := 0; i+1 < len(pairs); i += 2 {
		col := pairs[i].(string)
		ids := pairs[i+1].([]string)
		if len(ids) > 0 {
			or = append(or, inArray(col, ids))
		}
	}
	return or
}

func restrict(s domain.Scope, build func() sq.Or) sq.Sqlizer {
	if s.Unrestricted {
		return nil
	}
	if s.IsEmpty() {
		return matchNothing
	}
	or := build()
	if len(or) == 0 {
		return matchNothing
	}
	return or
}

// estoqueScope mirrors domain.Scope.MatchEstoque.
func estoqueScope(s domain.Scope) sq.Sqlizer {
	return restrict(s, func() sq.Or {
		return append(typedLocal(s, "local_tipo", "local_id"), fields(
			"setor_id", s.SetorIDs,
			"sub_almoxarifado_id", s.SubAlmoxarifadoIDs,
			"almoxarifado_id", s.AlmoxarifadoIDs,
			"central_id", s.CentralIDs,
		)...)
	})
}

// movimentacaoScope mirrors domain.Scope.MatchMovimentacao.
func movimentacaoScope(s domain.Scope) sq.Sqlizer {
	return restrict(s, func() sq.Or {
		all := s.AllIDs()
		return fields("central_id", s.CentralIDs, "origem_id", all, "destino_id", all)
	})
}

// demandaScope mirrors domain.Scope.MatchDemanda.
func demandaScope(s domain.Scope) sq.Sqlizer {
	return restrict(s, func() sq.Or {
		return fields(
			"setor_id", s.SetorIDs,
			"sub_almoxarifado_id", s.SubAlmoxarifadoIDs,
			"almoxarifado_id", s.AlmoxarifadoIDs,
			"central_id", s.CentralIDs,
		)
	})
}

// alertaScope mirrors domain.Scope.MatchAlerta.
func alertaScope(s domain.Scope) sq.Sqlizer {
	return restrict(s, func() sq.Or {
		return append(typedLocal(s, "local_tipo", "local_id"), fields("central_id", s.CentralIDs)...)
	})
}
