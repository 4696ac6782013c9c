package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/almoxsms/almox-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(t *testing.T) *Consumer {
	t.Helper()
	c, err := NewConsumer(nil, "almox-service.alertas", logger.Nop())
	require.NoError(t, err)
	return c
}

func encode(t *testing.T, eventType string, data any) []byte {
	t.Helper()
	event, err := NewEvent(eventType, "almox-service", "corr-1", data)
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func TestDispatch_RoutesByType(t *testing.T) {
	c := newTestConsumer(t)

	var got EstoqueStatusEvent
	var corr string
	c.RegisterHandler(EventEstoqueStatus, func(ctx context.Context, e *Event) error {
		corr = CorrelationID(ctx)
		return e.UnmarshalData(&got)
	})

	body := encode(t, EventEstoqueStatus, EstoqueStatusEvent{
		ProdutoID: "p1", LocalTipo: "setor", LocalID: "s1",
		QuantidadeDisponivel: decimal.NewFromInt(2), Status: "Baixo",
	})

	assert.Equal(t, outcomeAck, c.dispatch(context.Background(), body, 0))
	assert.Equal(t, "p1", got.ProdutoID)
	assert.Equal(t, "Baixo", got.Status)
	assert.True(t, got.QuantidadeDisponivel.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, "corr-1", corr)
}

func TestDispatch_UnknownTypeIsAcked(t *testing.T) {
	c := newTestConsumer(t)
	body := encode(t, EventDemandaAtualizada, DemandaAtualizadaEvent{DemandaID: "d1"})
	assert.Equal(t, outcomeAck, c.dispatch(context.Background(), body, 0))
}

func TestDispatch_MalformedIsRejected(t *testing.T) {
	c := newTestConsumer(t)
	assert.Equal(t, outcomeReject, c.dispatch(context.Background(), []byte("{"), 0))
}

func TestDispatch_FailureRequeuesUntilLimit(t *testing.T) {
	c := newTestConsumer(t)
	c.RegisterHandler(EventEstoqueStatus, func(context.Context, *Event) error {
		return errors.New("db down")
	})
	body := encode(t, EventEstoqueStatus, EstoqueStatusEvent{})

	assert.Equal(t, outcomeRequeue, c.dispatch(context.Background(), body, 0))
	assert.Equal(t, outcomeReject, c.dispatch(context.Background(), body, maxRedeliveries))
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, retryCount(nil))
	headers := amqp.Table{"x-death": []any{amqp.Table{"count": int64(2)}}}
	assert.Equal(t, 2, retryCount(headers))
}
