// Package events publishes almox domain events to RabbitMQ. Publishing is
// best effort: failures are logged and never fail the operation that
// produced the event.
package events

import (
	"context"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/pkg/logger"
	"github.com/almoxsms/almox-backend/pkg/messaging"
)

// Source is the event source of this service.
const Source = "almox-service"

// Demanda actions carried by DemandaAtualizadaEvent.
const (
	AcaoCriada   = "criada"
	AcaoAtendida = "atendida"
	AcaoExcluida = "excluida"
)

// AlmoxEventPublisher publishes almox events. A nil publisher drops them,
// which is how the service runs with rabbitmq disabled.
type AlmoxEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewAlmoxEventPublisher declares the exchange and creates the publisher.
func NewAlmoxEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*AlmoxEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeAlmoxEvents, Source, log)
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(publisher, log), nil
}

// NewWithPublisher wraps any EventPublisher, e.g. testutil.MockPublisher.
func NewWithPublisher(p messaging.EventPublisher, log *logger.Logger) *AlmoxEventPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &AlmoxEventPublisher{publisher: p, logger: log}
}

// PublishMovimentacao publishes a movimentacao registrada event
func (p *AlmoxEventPublisher) PublishMovimentacao(ctx context.Context, m *domain.Movimentacao) {
	if p == nil || m == nil {
		return
	}
	data := messaging.MovimentacaoRegistradaEvent{
		MovimentacaoID:     m.ID.String(),
		ProdutoID:          m.ProdutoID,
		Tipo:               string(m.Tipo),
		Quantidade:         m.Quantidade,
		OrigemTipo:         m.OrigemTipo,
		OrigemID:           m.OrigemID,
		DestinoTipo:        m.DestinoTipo,
		DestinoID:          m.DestinoID,
		CentralID:          m.CentralID,
		UsuarioResponsavel: m.UsuarioResponsavel,
	}
	if err := p.publisher.Publish(ctx, messaging.EventMovimentacaoRegistrada, data); err != nil {
		p.logger.Error().Err(err).Str("movimentacao_id", data.MovimentacaoID).Msg("failed to publish movimentacao event")
	}
}

// PublishEstoqueStatus publishes the classified balance after a mutation
func (p *AlmoxEventPublisher) PublishEstoqueStatus(ctx context.Context, e *domain.Estoque, status domain.EstoqueStatus) {
	if p == nil || e == nil {
		return
	}
	data := messaging.EstoqueStatusEvent{
		EstoqueID:            e.ID.String(),
		ProdutoID:            e.ProdutoID,
		LocalTipo:            string(e.LocalTipo),
		LocalID:              e.LocalID,
		CentralID:            e.CentralID,
		Quantidade:           e.Quantidade,
		QuantidadeDisponivel: e.QuantidadeDisponivel,
		QuantidadeInicial:    e.QuantidadeInicial,
		Status:               string(status),
	}
	if err := p.publisher.Publish(ctx, messaging.EventEstoqueStatus, data); err != nil {
		p.logger.Error().Err(err).Str("estoque_id", data.EstoqueID).Msg("failed to publish estoque status event")
	}
}

// PublishDemanda publishes a demanda atualizada event
func (p *AlmoxEventPublisher) PublishDemanda(ctx context.Context, d *domain.Demanda, acao, usuario string) {
	if p == nil || d == nil {
		return
	}
	data := messaging.DemandaAtualizadaEvent{
		DemandaID: d.ID.String(),
		SetorID:   d.SetorID,
		Status:    string(d.Status),
		Acao:      acao,
		Usuario:   usuario,
	}
	if err := p.publisher.Publish(ctx, messaging.EventDemandaAtualizada, data); err != nil {
		p.logger.Error().Err(err).Str("demanda_id", data.DemandaID).Msg("failed to publish demanda event")
	}
}
