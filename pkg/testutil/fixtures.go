package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is the clear text password of every Usuario fixture.
const DefaultPassword = "senha123"

// FixtureFactory creates domain fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Produto creates an active product owned by centralID
func (f *FixtureFactory) Produto(centralID string, opts ...func(*domain.Produto)) *domain.Produto {
	seq := f.nextSeq()
	p := &domain.Produto{
		Nome:      fmt.Sprintf("Produto %d", seq),
		Codigo:    fmt.Sprintf("PRD-%04d", seq),
		Unidade:   "un",
		CentralID: centralID,
		Ativo:     true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Usuario creates an active user with DefaultPassword
func (f *FixtureFactory) Usuario(role actor.Role, scopeID string, opts ...func(*domain.Usuario)) *domain.Usuario {
	seq := f.nextSeq()
	hash, _ := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	u := &domain.Usuario{
		Nome:      fmt.Sprintf("Usuario %d", seq),
		Email:     fmt.Sprintf("usuario%d@almox.test", seq),
		Username:  fmt.Sprintf("usuario%d", seq),
		SenhaHash: string(hash),
		Role:      role,
		ScopeID:   scopeID,
		Ativo:     true,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Local creates a location of the given kind
func (f *FixtureFactory) Local(tipo domain.LocalTipo, opts ...func(*domain.Local)) *domain.Local {
	seq := f.nextSeq()
	l := &domain.Local{
		Tipo:  tipo,
		Nome:  fmt.Sprintf("%s %d", tipo, seq),
		Ativo: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LegacyID returns a pointer for Identity.LegacyID
func LegacyID(id string) *string {
	return &id
}

// Hierarchy is the location tree most tests run against:
//
//	Central (legacy id "1")
//	  Almox
//	    Sub
//	      Setor        linked through sub_almoxarifado_ids only
//	    SetorDireto    almoxarifado_id set directly
//	OutraCentral
//	  OutroAlmox
//	    SetorOutro
type Hierarchy struct {
	Central      *domain.Local
	Almox        *domain.Local
	Sub          *domain.Local
	Setor        *domain.Local
	SetorDireto  *domain.Local
	OutraCentral *domain.Local
	OutroAlmox   *domain.Local
	SetorOutro   *domain.Local
}

// SeedHierarchy stores the Hierarchy tree in s
func SeedHierarchy(t testing.TB, s store.Store) *Hierarchy {
	t.Helper()
	ctx := context.Background()
	f := NewFixtureFactory()
	create := func(l *domain.Local) *domain.Local {
		require.NoError(t, s.Locais().Create(ctx, l))
		return l
	}

	h := &Hierarchy{}
	h.Central = create(f.Local(domain.LocalCentral, func(l *domain.Local) {
		l.Nome = "Central Norte"
		l.LegacyID = LegacyID("1")
	}))
	h.Almox = create(f.Local(domain.LocalAlmoxarifado, func(l *domain.Local) {
		l.Nome = "Almoxarifado Geral"
		l.CentralID = h.Central.ID
	}))
	h.Sub = create(f.Local(domain.LocalSubAlmoxarifado, func(l *domain.Local) {
		l.Nome = "Sub Farmacia"
		l.AlmoxarifadoID = h.Almox.ID
	}))
	h.Setor = create(f.Local(domain.LocalSetor, func(l *domain.Local) {
		l.Nome = "UTI"
		l.SubAlmoxarifadoIDs = []string{h.Sub.ID}
	}))
	h.SetorDireto = create(f.Local(domain.LocalSetor, func(l *domain.Local) {
		l.Nome = "Recepcao"
		l.AlmoxarifadoID = h.Almox.ID
	}))
	h.OutraCentral = create(f.Local(domain.LocalCentral, func(l *domain.Local) {
		l.Nome = "Central Sul"
	}))
	h.OutroAlmox = create(f.Local(domain.LocalAlmoxarifado, func(l *domain.Local) {
		l.Nome = "Almoxarifado Sul"
		l.CentralID = h.OutraCentral.ID
	}))
	h.SetorOutro = create(f.Local(domain.LocalSetor, func(l *domain.Local) {
		l.Nome = "Pediatria"
		l.AlmoxarifadoID = h.OutroAlmox.ID
	}))
	return h
}

var seedSeq atomic.Int64

// SeedProduto stores a product fixture owned by centralID
func SeedProduto(t testing.TB, s store.Store, centralID string, opts ...func(*domain.Produto)) *domain.Produto {
	t.Helper()
	n := seedSeq.Add(1)
	named := func(p *domain.Produto) {
		p.Nome = fmt.Sprintf("Produto %d", n)
		p.Codigo = fmt.Sprintf("SEED-%04d", n)
	}
	p := NewFixtureFactory().Produto(centralID, append([]func(*domain.Produto){named}, opts...)...)
	require.NoError(t, s.Produtos().Create(context.Background(), p))
	return p
}

// SeedUsuario stores a user fixture
func SeedUsuario(t testing.TB, s store.Store, role actor.Role, scopeID string, opts ...func(*domain.Usuario)) *domain.Usuario {
	t.Helper()
	n := seedSeq.Add(1)
	named := func(u *domain.Usuario) {
		u.Email = fmt.Sprintf("seed%d@almox.test", n)
		u.Username = fmt.Sprintf("seed%d", n)
	}
	u := NewFixtureFactory().Usuario(role, scopeID, append([]func(*domain.Usuario){named}, opts...)...)
	require.NoError(t, s.Usuarios().Create(context.Background(), u))
	return u
}
