// Package service implements the almox use cases on top of the store,
// the policy and the ledger. Every operation reads the acting user from the
// context, asks the policy first and publishes events only after the store
// work committed.
package service

import (
	"context"
	"strings"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/events"
	"github.com/almoxsms/almox-backend/internal/almox/hierarchy"
	"github.com/almoxsms/almox-backend/internal/almox/identity"
	"github.com/almoxsms/almox-backend/internal/almox/ledger"
	"github.com/almoxsms/almox-backend/internal/almox/policy"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/actor"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Store     store.Store
	Resolver  *hierarchy.Resolver
	Policy    *policy.Policy
	Ledger    *ledger.Ledger
	Publisher *events.AlmoxEventPublisher
	Logger    *logger.Logger
}

// NewDeps wires resolver, policy and ledger over s.
func NewDeps(s store.Store, publisher *events.AlmoxEventPublisher, lowStockRatio decimal.Decimal, log *logger.Logger) Deps {
	if log == nil {
		log = logger.Nop()
	}
	resolver := hierarchy.New(s.Locais())
	return Deps{
		Store:     s,
		Resolver:  resolver,
		Policy:    policy.New(resolver),
		Ledger:    ledger.New(s, resolver, lowStockRatio),
		Publisher: publisher,
		Logger:    log,
	}
}

type core struct {
	Deps
	logger *logger.Logger
}

func newCore(d Deps, component string) core {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	return core{Deps: d, logger: log.WithComponent(component)}
}

// authorize returns the request actor when it holds capability.
func (c core) authorize(ctx context.Context, capability string) (*actor.Actor, error) {
	a := actor.FromContext(ctx)
	if err := c.Policy.Can(a, capability).Err(); err != nil {
		return nil, err
	}
	return a, nil
}

func (c core) check(d policy.Decision, err error) error {
	if err != nil {
		return err
	}
	return d.Err()
}

// scope is the read filter of the request actor.
func (c core) scope(ctx context.Context, a *actor.Actor) (domain.Scope, error) {
	return c.Policy.Scope(ctx, a)
}

func (c core) local(ctx context.Context, ref domain.LocalRef) (*domain.Local, error) {
	if !ref.Tipo.Valid() {
		return nil, errors.InvalidField("tipo", "validation.invalid")
	}
	if strings.TrimSpace(ref.ID) == "" {
		return nil, errors.InvalidField("id", "validation.required")
	}
	return c.Store.Locais().Get(ctx, ref.Tipo, ref.ID)
}

// produtoForms resolves a product reference into every form it may be
// stored under. Unknown references fall back to the identity expansion.
func (c core) produtoForms(ctx context.Context, ref string) ([]string, error) {
	if ref == "" {
		return nil, nil
	}
	p, err := c.Store.Produtos().Get(ctx, ref)
	switch {
	case err == nil:
		return p.AllForms(), nil
	case errors.Is(err, errors.ErrNotFound):
		return identity.Expand(ref), nil
	default:
		return nil, err
	}
}

// localForms is produtoForms for locations.
func (c core) localForms(ctx context.Context, tipo domain.LocalTipo, ref string) ([]string, error) {
	if ref == "" {
		return nil, nil
	}
	l, err := c.Store.Locais().Get(ctx, tipo, ref)
	switch {
	case err == nil:
		return l.Forms(), nil
	case errors.Is(err, errors.ErrNotFound):
		return identity.Expand(ref), nil
	default:
		return nil, err
	}
}

// publishResult emits the movement and the new status of every touched
// balance.
func (c core) publishResult(ctx context.Context, res *ledger.Result) {
	if res == nil {
		return
	}
	c.Publisher.PublishMovimentacao(ctx, res.Movimentacao)
	c.publishBalances(ctx, res.Balances...)
}

func (c core) publishBalances(ctx context.Context, balances ...*domain.Estoque) {
	for _, e := range balances {
		if e == nil {
			continue
		}
		c.Publisher.PublishEstoqueStatus(ctx, e, c.Ledger.Classify(e))
	}
}
