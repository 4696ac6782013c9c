package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/identity"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/permissions"
	"github.com/shopspring/decimal"
)

// CatalogService manages categorias and produtos.
type CatalogService struct {
	core
}

// NewCatalogService creates a new catalog service
func NewCatalogService(d Deps) *CatalogService {
	return &CatalogService{core: newCore(d, "catalog-service")}
}

// CategoriaInput is the writable part of a categoria.
type CategoriaInput struct {
	LegacyID  *string `json:"legacy_id,omitempty"`
	Nome      string  `json:"nome" validate:"required,max=120"`
	Descricao string  `json:"descricao"`
	Ativo     *bool   `json:"ativo"`
}

// ProdutoInput is the writable part of a produto. Codigo is read on create
// only.
type ProdutoInput struct {
	LegacyID    *string `json:"legacy_id,omitempty"`
	Nome        string  `json:"nome" validate:"required,max=200"`
	Codigo      string  `json:"codigo" validate:"max=60"`
	Unidade     string  `json:"unidade" validate:"required,max=20"`
	Descricao   string  `json:"descricao"`
	CategoriaID string  `json:"categoria_id"`
	CentralID   string  `json:"central_id"`
	Observacoes string  `json:"observacoes"`
	Ativo       *bool   `json:"ativo"`
}

// ProdutoQuery filters a product listing.
type ProdutoQuery struct {
	Search      string
	CategoriaID string
	CentralID   string
	Page        domain.Page
}

// EstoqueLocal is the balance of a product at one location, merged across
// identity forms.
type EstoqueLocal struct {
	LocalTipo  domain.LocalTipo `json:"local_tipo"`
	LocalID    string           `json:"local_id"`
	LocalNome  string           `json:"local_nome"`
	Quantidade decimal.Decimal  `json:"quantidade"`
}

// ProdutoDetalhes is a product with its lotes and where its stock is.
type ProdutoDetalhes struct {
	*domain.Produto
	Lotes         []*domain.Lote  `json:"lotes"`
	EstoqueTotal  decimal.Decimal `json:"estoque_total"`
	EstoqueLocais []EstoqueLocal  `json:"estoque_locais"`
}

// LimpezaResult counts what a cleanup removed.
type LimpezaResult struct {
	Estoques      int64 `json:"estoques_removidos"`
	Movimentacoes int64 `json:"movimentacoes_removidas"`
}

// Categorias

func (s *CatalogService) CreateCategoria(ctx context.Context, in CategoriaInput) (*domain.Categoria, error) {
	if _, err := s.authorize(ctx, permissions.CategoriasWrite); err != nil {
		return nil, err
	}
	c := &domain.Categoria{Nome: strings.TrimSpace(in.Nome), Descricao: in.Descricao, Ativo: true}
	c.LegacyID = in.LegacyID
	if in.Ativo != nil {
		c.Ativo = *in.Ativo
	}
	if err := s.Store.Categorias().Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) GetCategoria(ctx context.Context, id string) (*domain.Categoria, error) {
	if _, err := s.authorize(ctx, permissions.CategoriasRead); err != nil {
		return nil, err
	}
	return s.Store.Categorias().Get(ctx, id)
}

// ListCategorias lists categorias; actors restricted to some categorias see
// only those.
func (s *CatalogService) ListCategorias(ctx context.Context) ([]*domain.Categoria, error) {
	a, err := s.authorize(ctx, permissions.CategoriasRead)
	if err != nil {
		return nil, err
	}
	rows, err := s.Store.Categorias().List(ctx)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, c := range rows {
		if s.Policy.CanUseCategoria(a, c.ID).Allowed {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *CatalogService) UpdateCategoria(ctx context.Context, id string, in CategoriaInput) (*domain.Categoria, error) {
	if _, err := s.authorize(ctx, permissions.CategoriasWrite); err != nil {
		return nil, err
	}
	c, err := s.Store.Categorias().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Nome = strings.TrimSpace(in.Nome)
	c.Descricao = in.Descricao
	if in.Ativo != nil {
		c.Ativo = *in.Ativo
	}
	if err := s.Store.Categorias().Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) DeleteCategoria(ctx context.Context, id string) error {
	if _, err := s.authorize(ctx, permissions.CategoriasWrite); err != nil {
		return err
	}
	return s.Store.Categorias().Delete(ctx, id)
}

// Produtos

// CreateProduto creates a product owned by the actor's central unless the
// actor is super_admin and names another one.
func (s *CatalogService) CreateProduto(ctx context.Context, in ProdutoInput) (*domain.Produto, error) {
	a, err := s.authorize(ctx, permissions.ProdutosWrite)
	if err != nil {
		return nil, err
	}

	p := &domain.Produto{
		Nome:        strings.TrimSpace(in.Nome),
		Codigo:      strings.ToUpper(strings.TrimSpace(in.Codigo)),
		Unidade:     in.Unidade,
		Descricao:   in.Descricao,
		Observacoes: in.Observacoes,
		CentralID:   in.CentralID,
		Ativo:       true,
	}
	p.LegacyID = in.LegacyID
	if in.Ativo != nil {
		p.Ativo = *in.Ativo
	}
	if p.CentralID == "" {
		p.CentralID = a.CentralID
	}
	if p.CentralID == "" {
		return nil, errors.InvalidField("central_id", "validation.required")
	}
	central, err := s.Store.Locais().Get(ctx, domain.LocalCentral, p.CentralID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidField("central_id", "validation.invalid")
		}
		return nil, err
	}
	p.CentralID = central.ID

	if err := s.Policy.CanManageProduto(a, p.CentralID).Err(); err != nil {
		return nil, err
	}
	if p.CategoriaID, err = s.categoria(ctx, a, in.CategoriaID); err != nil {
		return nil, err
	}
	if p.Codigo == "" {
		if p.Codigo, err = s.nextCodigo(ctx, p.CategoriaID); err != nil {
			return nil, err
		}
	}

	if err := s.Store.Produtos().Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.For(ctx).Info().Str("produto_id", p.ID).Str("codigo", p.Codigo).Msg("produto created")
	return p, nil
}

// categoria canonicalizes a category reference and checks the actor may use it.
func (s *CatalogService) categoria(ctx context.Context, a *actor.Actor, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	c, err := s.Store.Categorias().Get(ctx, id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return "", errors.InvalidField("categoria_id", "validation.invalid")
		}
		return "", err
	}
	if err := s.Policy.CanUseCategoria(a, c.ID).Err(); err != nil {
		return "", err
	}
	return c.ID, nil
}

func (s *CatalogService) GetProduto(ctx context.Context, id string) (*domain.Produto, error) {
	if _, err := s.authorize(ctx, permissions.ProdutosRead); err != nil {
		return nil, err
	}
	return s.Store.Produtos().Get(ctx, id)
}

// ListProdutos lists products. Actors bound to a central see that central's
// catalog.
func (s *CatalogService) ListProdutos(ctx context.Context, q ProdutoQuery) ([]*domain.Produto, int64, error) {
	a, err := s.authorize(ctx, permissions.ProdutosRead)
	if err != nil {
		return nil, 0, err
	}
	f := store.ProdutoFilter{
		Search:      q.Search,
		CategoriaID: q.CategoriaID,
		CentralID:   q.CentralID,
		Page:        q.Page,
	}
	if !a.IsSuperAdmin() && a.CentralID != "" {
		f.CentralID = a.CentralID
	}
	return s.Store.Produtos().List(ctx, f)
}

// UpdateProduto rewrites a product. Codigo never changes.
func (s *CatalogService) UpdateProduto(ctx context.Context, id string, in ProdutoInput) (*domain.Produto, error) {
	a, err := s.authorize(ctx, permissions.ProdutosWrite)
	if err != nil {
		return nil, err
	}
	p, err := s.Store.Produtos().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanManageProduto(a, p.CentralID).Err(); err != nil {
		return nil, err
	}

	p.Nome = strings.TrimSpace(in.Nome)
	p.Unidade = in.Unidade
	p.Descricao = in.Descricao
	p.Observacoes = in.Observacoes
	if in.Ativo != nil {
		p.Ativo = *in.Ativo
	}
	if p.CategoriaID, err = s.categoria(ctx, a, in.CategoriaID); err != nil {
		return nil, err
	}
	if err := s.Store.Produtos().Update(ctx, p); err != nil {
		return nil, err
	}
	s.logger.For(ctx).Info().Str("produto_id", p.ID).Msg("produto updated")
	return p, nil
}

// DeleteProduto removes a product that holds no stock.
func (s *CatalogService) DeleteProduto(ctx context.Context, id string) error {
	a, err := s.authorize(ctx, permissions.ProdutosDelete)
	if err != nil {
		return err
	}
	p, err := s.Store.Produtos().Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Policy.CanManageProduto(a, p.CentralID).Err(); err != nil {
		return err
	}

	total, err := s.stock(ctx, p)
	if err != nil {
		return err
	}
	if total.IsPositive() {
		return errors.Conflict(fmt.Sprintf("produto %s ainda possui %s em estoque", p.Codigo, total))
	}
	if err := s.Store.Produtos().Delete(ctx, p.ID); err != nil {
		return err
	}
	s.logger.For(ctx).Info().Str("produto_id", p.ID).Msg("produto deleted")
	return nil
}

func (s *CatalogService) stock(ctx context.Context, p *domain.Produto) (decimal.Decimal, error) {
	rows, _, err := s.Store.Estoques().List(ctx, store.EstoqueFilter{
		Scope:        domain.UnrestrictedScope(),
		ProdutoForms: p.AllForms(),
	})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range rows {
		total = total.Add(e.QuantidadeDisponivel)
	}
	return total, nil
}

// Detalhes returns the product, its lotes and its balances inside the
// actor's scope. Balances stored under different forms of the same
// location are merged.
func (s *CatalogService) Detalhes(ctx context.Context, id string) (*ProdutoDetalhes, error) {
	a, err := s.authorize(ctx, permissions.ProdutosRead)
	if err != nil {
		return nil, err
	}
	p, err := s.Store.Produtos().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	scope, err := s.scope(ctx, a)
	if err != nil {
		return nil, err
	}

	lotes, err := s.Store.Lotes().ListByProduto(ctx, p.AllForms())
	if err != nil {
		return nil, err
	}
	balances, _, err := s.Store.Estoques().List(ctx, store.EstoqueFilter{Scope: scope, ProdutoForms: p.AllForms()})
	if err != nil {
		return nil, err
	}

	out := &ProdutoDetalhes{Produto: p, Lotes: lotes, EstoqueTotal: decimal.Zero, EstoqueLocais: []EstoqueLocal{}}
	index := make(map[string]int)
	for _, e := range balances {
		entry := EstoqueLocal{LocalTipo: e.LocalTipo, LocalID: e.LocalID, LocalNome: e.LocalID}
		if l, err := s.Store.Locais().Get(ctx, e.LocalTipo, e.LocalID); err == nil {
			entry.LocalID, entry.LocalNome = l.ID, l.Nome
		} else if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}

		key := string(entry.LocalTipo) + "/" + identity.Parse(entry.LocalID).String()
		if i, ok := index[key]; ok {
			out.EstoqueLocais[i].Quantidade = out.EstoqueLocais[i].Quantidade.Add(e.QuantidadeDisponivel)
		} else {
			entry.Quantidade = e.QuantidadeDisponivel
			index[key] = len(out.EstoqueLocais)
			out.EstoqueLocais = append(out.EstoqueLocais, entry)
		}
		out.EstoqueTotal = out.EstoqueTotal.Add(e.QuantidadeDisponivel)
	}
	return out, nil
}

// GerarCodigo proposes the next free code for a categoria: the first three
// letters of its name and a four digit sequence, e.g. MED-0007.
func (s *CatalogService) GerarCodigo(ctx context.Context, categoriaID string) (string, error) {
	if _, err := s.authorize(ctx, permissions.ProdutosWrite); err != nil {
		return "", err
	}
	return s.nextCodigo(ctx, categoriaID)
}

func (s *CatalogService) nextCodigo(ctx context.Context, categoriaID string) (string, error) {
	prefix := "PRD"
	if categoriaID != "" {
		c, err := s.Store.Categorias().Get(ctx, categoriaID)
		if err != nil {
			return "", err
		}
		if p := codigoPrefix(c.Nome); p != "" {
			prefix = p
		}
	}

	codigos, err := s.Store.Produtos().CodigosWithPrefix(ctx, prefix+"-")
	if err != nil {
		return "", err
	}
	next := 1
	for _, codigo := range codigos {
		n, err := strconv.Atoi(codigo[len(prefix)+1:])
		if err == nil && n >= next {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s-%04d", prefix, next), nil
}

var accents = strings.NewReplacer(
	"Á", "A", "À", "A", "Â", "A", "Ã", "A", "Ä", "A",
	"É", "E", "È", "E", "Ê", "E", "Í", "I", "Ì", "I",
	"Ó", "O", "Ò", "O", "Ô", "O", "Õ", "O", "Ö", "O",
	"Ú", "U", "Ù", "U", "Ü", "U", "Ç", "C",
)

func codigoPrefix(nome string) string {
	var b strings.Builder
	for _, r := range accents.Replace(strings.ToUpper(nome)) {
		if r <= unicode.MaxASCII && unicode.IsLetter(r) {
			b.WriteRune(r)
			if b.Len() == 3 {
				break
			}
		}
	}
	return b.String()
}

// LimparDadosSemLotes deletes every balance and movement of a product that
// has no lotes left.
func (s *CatalogService) LimparDadosSemLotes(ctx context.Context, id string) (*LimpezaResult, error) {
	if _, err := s.authorize(ctx, permissions.ProdutosPurge); err != nil {
		return nil, err
	}
	p, err := s.Store.Produtos().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	lotes, err := s.Store.Lotes().ListByProduto(ctx, p.AllForms())
	if err != nil {
		return nil, err
	}
	if len(lotes) > 0 {
		return nil, errors.Conflict(fmt.Sprintf("produto %s possui %d lote(s)", p.Codigo, len(lotes)))
	}

	res, err := purgeProduto(ctx, s.Store, p)
	if err != nil {
		return nil, err
	}
	s.logger.For(ctx).Warn().
		Str("produto_id", p.ID).
		Int64("estoques", res.Estoques).
		Int64("movimentacoes", res.Movimentacoes).
		Msg("produto data purged")
	return res, nil
}

// purgeProduto removes the product's balances and movements under every
// identity form in one transaction.
func purgeProduto(ctx context.Context, s store.Store, p *domain.Produto) (*LimpezaResult, error) {
	res := &LimpezaResult{}
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if res.Estoques, err = s.Estoques().DeleteByProduto(ctx, p.AllForms()); err != nil {
			return err
		}
		res.Movimentacoes, err = s.Movimentacoes().DeleteByProduto(ctx, p.AllForms())
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
