// Package queue delivers notification events to RabbitMQ.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Message is a single event handed to the broker.
type Message struct {
	ID   string
	Type string
	// Recipient is a customer ID or the owner address.
	Recipient string
	Body      []byte
	Timestamp time.Time
}

// RecipientHeader carries Message.Recipient on the AMQP message.
const RecipientHeader = "recipient"

// Publisher sends messages to a broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// RabbitPublisher publishes persistent JSON messages to a durable queue through the
// default exchange. A dropped connection is re-dialed on the next publish.
type RabbitPublisher struct {
	url    string
	queue  string
	logger *logrus.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitPublisher dials the broker and declares queue.
func NewRabbitPublisher(url, queue string, logger *logrus.Logger) (*RabbitPublisher, error) {
	p := &RabbitPublisher{url: url, queue: queue, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: queue declare failed: %w", err)
	}

	p.conn = conn
	p.ch = ch
	return nil
}

// Publish sends msg to the queue, reconnecting first if the channel was closed.
func (p *RabbitPublisher) Publish(ctx context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() || p.conn.IsClosed() {
		p.logger.Warn("rabbitmq: channel closed, reconnecting")
		p.closeLocked()
		if err := p.connect(); err != nil {
			return err
		}
	}

	if err := p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		toPublishing(msg),
	); err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}
	return nil
}

func toPublishing(msg Message) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         msg.Type,
		Headers:      amqp.Table{RecipientHeader: msg.Recipient},
		Timestamp:    msg.Timestamp.UTC(),
		Body:         msg.Body,
	}
}

// Close releases the channel and connection.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *RabbitPublisher) closeLocked() error {
	var err error
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err = p.conn.Close()
		p.conn = nil
	}
	return err
}

// LogPublisher writes messages to the log instead of a broker. Used when no broker URL
// is configured.
type LogPublisher struct {
	logger *logrus.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, msg Message) error {
	p.logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"type":       msg.Type,
		"recipient":  msg.Recipient,
		"body":       string(msg.Body),
	}).Info("[NOTIFICATION] published")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

var (
	_ Publisher = (*RabbitPublisher)(nil)
	_ Publisher = (*LogPublisher)(nil)
)
