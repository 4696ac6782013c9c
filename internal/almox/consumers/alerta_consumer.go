package consumers

import (
	"context"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/events"
	"github.com/almoxsms/almox-backend/internal/almox/store"
	"github.com/almoxsms/almox-backend/pkg/logger"
	"github.com/almoxsms/almox-backend/pkg/messaging"
)

// QueueAlertas is the durable queue of the low stock consumer.
const QueueAlertas = events.Source + ".alertas"

// AlertaConsumer turns estoque status events into alertas: Baixo and Zerado
// open or refresh the balance's alerta, Normal resolves it.
type AlertaConsumer struct {
	consumer *messaging.Consumer
	alertas  store.AlertaStore
	logger   *logger.Logger
}

// NewAlertaConsumer creates the consumer and binds it to estoque status events
func NewAlertaConsumer(rmq *messaging.RabbitMQ, alertas store.AlertaStore, log *logger.Logger) (*AlertaConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, QueueAlertas, log)
	if err != nil {
		return nil, err
	}
	if err := consumer.Subscribe(messaging.ExchangeAlmoxEvents, messaging.EventEstoqueStatus); err != nil {
		return nil, err
	}

	c := NewAlertaHandler(alertas, log)
	c.consumer = consumer
	consumer.RegisterHandler(messaging.EventEstoqueStatus, c.HandleEstoqueStatus)
	return c, nil
}

// NewAlertaHandler builds the handler without a broker connection.
func NewAlertaHandler(alertas store.AlertaStore, log *logger.Logger) *AlertaConsumer {
	if log == nil {
		log = logger.Nop()
	}
	return &AlertaConsumer{alertas: alertas, logger: log.WithComponent("alerta-consumer")}
}

// Start starts consuming messages
func (c *AlertaConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// Restart re-declares the queue binding on a fresh channel and consumes again.
func (c *AlertaConsumer) Restart(ctx context.Context) error {
	if err := c.consumer.Subscribe(messaging.ExchangeAlmoxEvents, messaging.EventEstoqueStatus); err != nil {
		return err
	}
	return c.consumer.Start(ctx)
}

// HandleEstoqueStatus applies one status event.
func (c *AlertaConsumer) HandleEstoqueStatus(ctx context.Context, event *messaging.Event) error {
	var data messaging.EstoqueStatusEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	tipo := domain.LocalTipo(data.LocalTipo)
	status := domain.EstoqueStatus(data.Status)
	switch status {
	case domain.StatusBaixo, domain.StatusZerado:
		alerta := &domain.Alerta{
			ProdutoID:            data.ProdutoID,
			LocalTipo:            tipo,
			LocalID:              data.LocalID,
			CentralID:            data.CentralID,
			Status:               status,
			QuantidadeDisponivel: data.QuantidadeDisponivel,
		}
		if err := c.alertas.Open(ctx, alerta); err != nil {
			return err
		}
		c.logger.Info().
			Str("produto_id", data.ProdutoID).
			Str("local_id", data.LocalID).
			Str("status", data.Status).
			Msg("alerta opened")
		return nil
	case domain.StatusNormal:
		return c.alertas.ResolveFor(ctx, data.ProdutoID, tipo, data.LocalID, events.Source)
	default:
		c.logger.Warn().Str("status", data.Status).Msg("ignoring estoque status event with unknown status")
		return nil
	}
}
