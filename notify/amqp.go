package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"floorops/logger"
	"floorops/models"

	"github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the fanout exchange events are published to.
const DefaultExchange = "restaurante.eventos"

// AMQPSink publishes every event to a durable fanout exchange, routing key = event name.
type AMQPSink struct {
	url      string
	exchange string
	log      *logger.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewAMQPSink(url, exchange string, log *logger.Logger) (*AMQPSink, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	s := &AMQPSink{url: url, exchange: exchange, log: log}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AMQPSink) connect() error {
	conn, err := amqp091.Dial(s.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		s.exchange, // name
		"fanout",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare %s exchange: %w", s.exchange, err)
	}
	s.conn, s.channel = conn, ch
	return nil
}

func (s *AMQPSink) Publish(ctx context.Context, e models.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || s.conn.IsClosed() {
		if err := s.connect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err = s.channel.PublishWithContext(
		ctx,
		s.exchange, // exchange
		e.Name,     // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    e.Timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Name, err)
	}
	s.log.Debug(ctx, "event_published", "published event to exchange",
		slog.String("exchange", s.exchange), slog.String("event", e.Name), slog.Int("size", len(body)))
	return nil
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
