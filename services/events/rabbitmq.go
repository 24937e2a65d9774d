package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/trezcool/edusys/core"
)

const publishTimeout = 5 * time.Second

type rabbitMQPublisher struct {
	mu         sync.Mutex // amqp channels are not safe for concurrent publishing
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     zerolog.Logger
}

// NewRabbitMQPublisher declares a durable direct exchange and binds conf.Queue to it.
func NewRabbitMQPublisher(conf core.EventsConfig, logger zerolog.Logger) (Publisher, error) {
	conn, err := amqp.Dial(conf.URL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to rabbitmq")
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}

	fail := func(err error, msg string) (Publisher, error) {
		_ = channel.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, msg)
	}

	if err = channel.ExchangeDeclare(
		conf.Exchange, // name
		"direct",      // type
		true,          // durable
		false,         // auto-deleted
		false,         // internal
		false,         // no-wait
		nil,           // arguments
	); err != nil {
		return fail(err, "declaring exchange")
	}

	queue, err := channel.QueueDeclare(
		conf.Queue, // name
		true,       // durable
		false,      // delete when unused
		false,      // exclusive
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fail(err, "declaring queue")
	}

	if err = channel.QueueBind(queue.Name, conf.RoutingKey, conf.Exchange, false, nil); err != nil {
		return fail(err, "binding queue")
	}

	logger.Info().
		Str("exchange", conf.Exchange).
		Str("queue", queue.Name).
		Str("routing_key", conf.RoutingKey).
		Msg("connected to rabbitmq")

	return &rabbitMQPublisher{
		conn:       conn,
		channel:    channel,
		exchange:   conf.Exchange,
		routingKey: conf.RoutingKey,
		logger:     logger,
	}, nil
}

func (p *rabbitMQPublisher) Publish(ctx context.Context, evt core.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "marshalling event")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	err = p.channel.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Type:         evt.Type,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    evt.OccurredAt,
	})
	p.mu.Unlock()
	if err != nil {
		return errors.Wrapf(err, "publishing %s", evt.Type)
	}

	p.logger.Debug().Str("type", evt.Type).Msg("event published")
	return nil
}

func (p *rabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.logger.Error().Err(err).Msg("closing rabbitmq channel")
	}
	return errors.Wrap(p.conn.Close(), "closing rabbitmq connection")
}
