package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/almoxsms/almox-backend/pkg/config"
	"github.com/almoxsms/almox-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("rabbitmq: connection closed")

// Topology is what a service declares on every (re)connect.
type Topology struct {
	// Exchanges are declared as durable topic exchanges.
	Exchanges []string
	// DeadLetterQueue receives every message rejected into ExchangeDeadLetter.
	// Empty skips the dead letter setup.
	DeadLetterQueue string
}

// AlmoxTopology is the exchange layout of the almox service.
func AlmoxTopology(service string) Topology {
	return Topology{
		Exchanges:       []string{ExchangeAlmoxEvents},
		DeadLetterQueue: "dlq." + service,
	}
}

// RabbitMQ owns one connection and channel, re-dialed by Watch when the
// broker drops it.
type RabbitMQ struct {
	config   *config.RabbitMQConfig
	topology Topology
	logger   *logger.Logger

	mu          sync.RWMutex
	conn        *amqp.Connection
	channel     *amqp.Channel
	closed      bool
	reconnects  int
	onReconnect []func()
}

// New connects and declares topology.
func New(cfg *config.RabbitMQConfig, topology Topology, log *logger.Logger) (*RabbitMQ, error) {
	if log == nil {
		log = logger.Nop()
	}
	rmq := &RabbitMQ{
		config:   cfg,
		topology: topology,
		logger:   log.WithComponent("rabbitmq"),
	}

	rmq.mu.Lock()
	defer rmq.mu.Unlock()
	if err := rmq.connect(); err != nil {
		return nil, err
	}
	return rmq, nil
}

// connect dials and declares the topology. Callers hold mu.
func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(r.config.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	if err := declare(ch, r.topology); err != nil {
		conn.Close()
		return err
	}

	r.conn, r.channel = conn, ch
	r.logger.Info().Strs("exchanges", r.topology.Exchanges).Msg("connected to RabbitMQ")
	return nil
}

func declare(ch *amqp.Channel, t Topology) error {
	for _, name := range t.Exchanges {
		if err := ch.ExchangeDeclare(name, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", name, err)
		}
	}
	if t.DeadLetterQueue == "" {
		return nil
	}

	if err := ch.ExchangeDeclare(ExchangeDeadLetter, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLX exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(t.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ queue: %w", err)
	}
	// "#" catches every routing key that was dead-lettered.
	if err := ch.QueueBind(t.DeadLetterQueue, "#", ExchangeDeadLetter, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}
	return nil
}

// Channel returns the current channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// OnReconnect registers fn to run after every successful reconnect, e.g. to
// restart a consumer on the new channel.
func (r *RabbitMQ) OnReconnect(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReconnect = append(r.onReconnect, fn)
}

// Watch blocks until ctx is done, re-dialing whenever the connection drops.
func (r *RabbitMQ) Watch(ctx context.Context) {
	for {
		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()
		if conn == nil {
			return
		}

		closed := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-ctx.Done():
			return
		case amqpErr, ok := <-closed:
			if !ok && amqpErr == nil {
				// Graceful close.
				r.mu.RLock()
				done := r.closed
				r.mu.RUnlock()
				if done {
					return
				}
			}
			r.logger.Warn().Interface("reason", amqpErr).Msg("RabbitMQ connection lost")
		}

		if err := r.Reconnect(ctx); err != nil {
			r.logger.Error().Err(err).Msg("giving up on RabbitMQ")
			return
		}
	}
}

// Reconnect re-dials with config.ReconnectDelay between at most
// config.MaxRetries attempts, then runs the OnReconnect hooks.
func (r *RabbitMQ) Reconnect(ctx context.Context) error {
	attempts := r.config.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return ErrClosed
		}
		err := r.connect()
		if err == nil {
			r.reconnects++
			hooks := append([]func(){}, r.onReconnect...)
			r.mu.Unlock()
			for _, fn := range hooks {
				fn()
			}
			return nil
		}
		r.mu.Unlock()

		r.logger.Warn().Err(err).Int("attempt", i+1).Msg("reconnection attempt failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.config.ReconnectDelay):
		}
	}

	return fmt.Errorf("failed to reconnect after %d attempts", attempts)
}

// Close closes the RabbitMQ connection
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health reports the connection state for /health
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := map[string]string{
		"status":     "up",
		"reconnects": strconv.Itoa(r.reconnects),
	}
	if r.conn == nil || r.conn.IsClosed() {
		status["status"] = "down"
		status["error"] = "connection closed"
	}
	return status
}

// DeclareExchange declares a durable topic exchange
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.Channel().ExchangeDeclare(
		name,    // name
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
}

// DeclareQueue declares a durable queue that dead-letters into ExchangeDeadLetter
func (r *RabbitMQ) DeclareQueue(name string) (amqp.Queue, error) {
	return r.Channel().QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange": ExchangeDeadLetter,
		},
	)
}

// BindQueue binds a queue to an exchange with a routing key pattern
func (r *RabbitMQ) BindQueue(queueName, exchange, routingKey string) error {
	return r.Channel().QueueBind(queueName, routingKey, exchange, false, nil)
}
