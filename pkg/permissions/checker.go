// Package permissions maps roles to capability strings and checks them with
// wildcard support.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "movimentacoes.*")
//   - "resource.action" - Specific action (e.g., "movimentacoes.consumo")
package permissions

import (
	"strings"

	"github.com/almoxsms/almox-backend/pkg/actor"
)

// Capabilities checked by the policy layer.
const (
	CentraisWrite = "centrais.write"

	LocaisRead  = "locais.read"
	LocaisWrite = "locais.write"

	CategoriasRead  = "categorias.read"
	CategoriasWrite = "categorias.write"

	ProdutosRead   = "produtos.read"
	ProdutosWrite  = "produtos.write"
	ProdutosDelete = "produtos.delete"
	ProdutosPurge  = "produtos.purge"

	LotesRead  = "lotes.read"
	LotesWrite = "lotes.write"

	MovimentacoesRead             = "movimentacoes.read"
	MovimentacoesEntrada          = "movimentacoes.entrada"
	MovimentacoesDistribuicao     = "movimentacoes.distribuicao"
	MovimentacoesConsumo          = "movimentacoes.consumo"
	MovimentacoesEstorno          = "movimentacoes.estorno"
	MovimentacoesSaidaJustificada = "movimentacoes.saida_justificada"

	EstoqueRead = "estoque.read"

	DemandasRead    = "demandas.read"
	DemandasCreate  = "demandas.create"
	DemandasAtender = "demandas.atender"
	DemandasDelete  = "demandas.delete"

	UsuariosRead  = "usuarios.read"
	UsuariosWrite = "usuarios.write"

	AlertasRead    = "alertas.read"
	AlertasResolve = "alertas.resolve"

	DashboardRead = "dashboard.read"
)

var readOnly = []string{
	LocaisRead, CategoriasRead, ProdutosRead, LotesRead, MovimentacoesRead,
	EstoqueRead, DemandasRead, AlertasRead, DashboardRead,
}

// stockManagement is every movement a stock holding location posts. Consumo
// is absent: only a setor's own operator records consumption.
var stockManagement = []string{
	MovimentacoesRead, MovimentacoesEntrada, MovimentacoesDistribuicao,
	MovimentacoesEstorno, MovimentacoesSaidaJustificada,
}

// All lists every capability; Expand resolves wildcards against it.
var All = []string{
	CentraisWrite, LocaisRead, LocaisWrite, CategoriasRead, CategoriasWrite,
	ProdutosRead, ProdutosWrite, ProdutosDelete, ProdutosPurge, LotesRead, LotesWrite,
	MovimentacoesRead, MovimentacoesEntrada, MovimentacoesDistribuicao, MovimentacoesConsumo,
	MovimentacoesEstorno, MovimentacoesSaidaJustificada, EstoqueRead,
	DemandasRead, DemandasCreate, DemandasAtender, DemandasDelete,
	UsuariosRead, UsuariosWrite, AlertasRead, AlertasResolve, DashboardRead,
}

// rolePermissions is the capability table per role. Scope (which locations) is
// decided elsewhere; this only answers "may this role do this kind of thing".
// super_admin keeps "*", consumo included, to correct a setor's records.
var rolePermissions = map[actor.Role][]string{
	actor.RoleSuperAdmin: {"*"},
	actor.RoleAdminCentral: merge(stockManagement, []string{
		"locais.*", "categorias.*", ProdutosRead, ProdutosWrite, ProdutosDelete,
		"lotes.*", EstoqueRead, "demandas.*", "usuarios.*", "alertas.*", DashboardRead,
	}),
	actor.RoleGerenteAlmox: merge(readOnly, stockManagement, []string{
		LocaisWrite, ProdutosWrite, LotesWrite, "demandas.*", UsuariosRead, AlertasResolve,
	}),
	actor.RoleRespSubAlmox: merge(readOnly, []string{
		ProdutosWrite, MovimentacoesEntrada, MovimentacoesDistribuicao,
		MovimentacoesEstorno, MovimentacoesSaidaJustificada, DemandasAtender,
		AlertasResolve,
	}),
	actor.RoleOperadorSetor: merge(readOnly, []string{
		MovimentacoesConsumo, MovimentacoesEstorno, DemandasCreate, DemandasDelete,
	}),
	actor.RoleOperador: merge(readOnly, []string{
		MovimentacoesEntrada, MovimentacoesDistribuicao,
	}),
}

// ForRole returns the capability list of a role; unknown roles get none.
func ForRole(role actor.Role) []string {
	return rolePermissions[role]
}

// RoleCan reports whether role holds the required capability.
func RoleCan(role actor.Role, required string) bool {
	return HasPermission(rolePermissions[role], required)
}

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "demandas.*" matches "demandas.create", "demandas.atender", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range userPerms {
		if p == "*" || p == required {
			return true
		}
		if prefix, ok := strings.CutSuffix(p, ".*"); ok && strings.HasPrefix(required, prefix+".") {
			return true
		}
	}
	return false
}

// Expand resolves the wildcards in perms into the concrete capabilities they
// grant, in All order.
func Expand(perms []string) []string {
	out := []string{}
	for _, p := range All {
		if HasPermission(perms, p) {
			out = append(out, p)
		}
	}
	return out
}

// HasAnyPermission checks if the user has any of the required permissions.
func HasAnyPermission(userPerms []string, required ...string) bool {
	for _, req := range required {
		if HasPermission(userPerms, req) {
			return true
		}
	}
	return false
}

func merge(sets ...[]string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, set := range sets {
		for _, p := range set {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}
	return result
}
