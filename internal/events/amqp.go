// Package events publishes logged entries to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
	"github.com/streadway/amqp"

	"github.com/codecurser/park-vision-control-system/internal/domain"
)

const ExchangeType = "topic"

// Channel is the subset of *amqp.Channel used by the publisher.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPPublisher struct {
	mu       deadlock.Mutex
	conn     *amqp.Connection
	channel  Channel
	exchange string
}

// Dial connects to uri and declares the durable exchange.
func Dial(uri, exchange string) (*AMQPPublisher, error) {
	log.Info().Str("component", "AMQP").Str("exchange", exchange).Msg("dialing broker")
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	p, err := NewAMQPPublisher(ch, exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	go func() {
		if cerr := <-conn.NotifyClose(make(chan *amqp.Error, 1)); cerr != nil {
			log.Error().Str("component", "AMQP").Str("reason", cerr.Reason).Msg("connection closed")
		}
	}()
	return p, nil
}

func NewAMQPPublisher(ch Channel, exchange string) (*AMQPPublisher, error) {
	if err := ch.ExchangeDeclare(
		exchange,     // name
		ExchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // noWait
		nil,          // arguments
	); err != nil {
		return nil, fmt.Errorf("amqp exchange declare %s: %w", exchange, err)
	}
	return &AMQPPublisher{channel: ch, exchange: exchange}, nil
}

// RoutingKey is entry.logged.entry or entry.logged.exit.
func RoutingKey(t domain.EntryType) string {
	return "entry.logged." + strings.ToLower(string(t))
}

func (p *AMQPPublisher) NotifyEntry(_ context.Context, n domain.EntryNotification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("AMQPPublisher.NotifyEntry: %w", err)
	}
	key := RoutingKey(n.Entry.EntryType)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Publish(
		p.exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			Headers:      amqp.Table{},
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    n.Entry.ID,
			Timestamp:    time.Now().UTC(),
		},
	); err != nil {
		return fmt.Errorf("AMQPPublisher.NotifyEntry: publish %s: %w", key, err)
	}
	log.Debug().Str("component", "AMQP").Str("routing_key", key).Str("plate", n.Entry.PlateNumber).Msg("entry published")
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
