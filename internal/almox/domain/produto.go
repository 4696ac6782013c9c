package domain

import (
	"time"
)

// Produto is a stock keeping unit owned by a Central. Codigo is unique and
// never changes after creation.
type Produto struct {
	Identity
	Nome        string `db:"nome" json:"nome"`
	Codigo      string `db:"codigo" json:"codigo"`
	Unidade     string `db:"unidade" json:"unidade"`
	Descricao   string `db:"descricao" json:"descricao,omitempty"`
	CategoriaID string `db:"categoria_id" json:"categoria_id,omitempty"`
	CentralID   string `db:"central_id" json:"central_id"`
	Observacoes string `db:"observacoes" json:"observacoes,omitempty"`
	Ativo       bool   `db:"ativo" json:"ativo"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AllForms is Forms plus the product code, which older balances and
// movements sometimes stored in place of the id.
func (p *Produto) AllForms() []string {
	forms := p.Forms()
	if p.Codigo != "" {
		forms = append(forms, p.Codigo)
	}
	return forms
}

// Categoria groups products; users may be restricted to a subset.
type Categoria struct {
	Identity
	Nome      string    `db:"nome" json:"nome"`
	Descricao string    `db:"descricao" json:"descricao,omitempty"`
	Ativo     bool      `db:"ativo" json:"ativo"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
