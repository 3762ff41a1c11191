package events

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/services/breaker"
)

var publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "practicas_events_published_total",
	Help: "Domain events handed to the publisher, by name and outcome.",
}, []string{"name", "outcome"})

func countPublished(name string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	publishedTotal.WithLabelValues(name, outcome).Inc()
}

// RabbitMQPublisher publishes domain events as persistent JSON messages on a durable queue.
type RabbitMQPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	cb    *gobreaker.CircuitBreaker
}

var _ core.EventPublisher = (*RabbitMQPublisher)(nil)

func NewRabbitMQPublisher(logger core.Logger, conf *core.Config) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(conf.Broker.URL)
	if err != nil {
		return nil, errors.Wrap(err, "dialing broker")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}

	_, err = ch.QueueDeclare(
		conf.Broker.Queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "declaring queue")
	}

	return &RabbitMQPublisher{
		conn:  conn,
		ch:    ch,
		queue: conf.Broker.Queue,
		cb:    breaker.New(breaker.RabbitMQ, logger),
	}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, evt core.Event) (err error) {
	defer func() { countPublished(evt.Name, err) }()

	body, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.ch.PublishWithContext(
			ctx,
			"",      // default exchange
			p.queue, // routing key == queue name
			false,   // mandatory
			false,   // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    evt.ID,
				Type:         evt.Name,
				Timestamp:    evt.OccurredAt,
				Body:         body,
			},
		)
	})
	return err
}

func (p *RabbitMQPublisher) Close() error {
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			return err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
