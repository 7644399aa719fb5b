package output

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"Go2NetSynth/internal/config"
	"Go2NetSynth/internal/model"

	"github.com/streadway/amqp"
)

// AMQPWriter publishes every generated flow as JSON to a RabbitMQ exchange.
type AMQPWriter struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	routingKey string
}

// NewAMQPWriter dials the broker and opens a channel.
func NewAMQPWriter(cfg config.AMQPConfig) (*AMQPWriter, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
		}
	}
	log.Printf("Connected to RabbitMQ, publishing to exchange '%s' with key '%s'", cfg.Exchange, cfg.RoutingKey)
	return &AMQPWriter{conn: conn, ch: ch, exchange: cfg.Exchange, routingKey: cfg.RoutingKey}, nil
}

func (w *AMQPWriter) Write(rec *model.Record) error {
	body, err := json.Marshal(NewRecordView(rec))
	if err != nil {
		return fmt.Errorf("failed to marshal flow %s: %w", rec.ID, err)
	}
	return w.ch.Publish(w.exchange, w.routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   rec.ID.String(),
		Timestamp:   time.Now(),
		Body:        body,
	})
}

func (w *AMQPWriter) Close() error {
	if err := w.ch.Close(); err != nil {
		w.conn.Close()
		return err
	}
	return w.conn.Close()
}
