package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventMovimentacaoRegistrada = "almox.movimentacao.registrada"
	EventEstoqueStatus          = "almox.estoque.status"
	EventDemandaAtualizada      = "almox.demanda.atualizada"
)

// Exchange names
const (
	ExchangeAlmoxEvents = "almox.events"
	ExchangeDeadLetter  = "almox.dlx"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// MovimentacaoRegistradaEvent is published for every appended movement.
type MovimentacaoRegistradaEvent struct {
	MovimentacaoID     string          `json:"movimentacao_id"`
	ProdutoID          string          `json:"produto_id"`
	Tipo               string          `json:"tipo"`
	Quantidade         decimal.Decimal `json:"quantidade"`
	OrigemTipo         string          `json:"origem_tipo,omitempty"`
	OrigemID           string          `json:"origem_id,omitempty"`
	DestinoTipo        string          `json:"destino_tipo,omitempty"`
	DestinoID          string          `json:"destino_id,omitempty"`
	CentralID          string          `json:"central_id,omitempty"`
	UsuarioResponsavel string          `json:"usuario_responsavel"`
}

// EstoqueStatusEvent carries the balance of one (produto, local) after a mutation.
type EstoqueStatusEvent struct {
	EstoqueID            string          `json:"estoque_id"`
	ProdutoID            string          `json:"produto_id"`
	LocalTipo            string          `json:"local_tipo"`
	LocalID              string          `json:"local_id"`
	CentralID            string          `json:"central_id,omitempty"`
	Quantidade           decimal.Decimal `json:"quantidade"`
	QuantidadeDisponivel decimal.Decimal `json:"quantidade_disponivel"`
	QuantidadeInicial    decimal.Decimal `json:"quantidade_inicial"`
	Status               string          `json:"status"`
}

// DemandaAtualizadaEvent is published when a demanda is created, fulfilled or deleted.
type DemandaAtualizadaEvent struct {
	DemandaID string `json:"demanda_id"`
	SetorID   string `json:"setor_id"`
	Status    string `json:"status"`
	Acao      string `json:"acao"`
	Usuario   string `json:"usuario"`
}
