package notify

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"droneDispatch/models"
)

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes notifications to a topic exchange. The routing key is the event
// type so consumers can bind to the events they care about.
type AMQPSink struct {
	ch       amqpPublisher
	exchange string
}

func NewAMQPSink(ch amqpPublisher, exchange string) *AMQPSink {
	return &AMQPSink{ch: ch, exchange: exchange}
}

// DialAMQP connects to url and declares a durable topic exchange. The returned close
// function releases the channel and the connection.
func DialAMQP(url, exchange string) (*AMQPSink, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp declare %s: %w", exchange, err)
	}
	closeFn := func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return NewAMQPSink(ch, exchange), closeFn, nil
}

func (s *AMQPSink) Notify(ctx context.Context, userID string, event models.EventType, payload map[string]any) error {
	body, err := encode(userID, event, payload)
	if err != nil {
		return err
	}
	return s.ch.PublishWithContext(ctx, s.exchange, string(event), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Headers:      amqp.Table{"user_id": userID},
		Body:         body,
	})
}
