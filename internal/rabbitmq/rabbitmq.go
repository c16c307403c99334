package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"todo_service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func New(urlForConn string, queueName string) (*RabbitMQClient, error) {
	const op = "rabbitmq.New"

	conn, err := amqp.Dial(urlForConn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q, err := ch.QueueDeclare(
		queueName, true, false, false, false, nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: ch,
		queue:   q,
	}, nil
}

// * Publish отправляет доменное событие в очередь как persistent JSON
func (r *RabbitMQClient) Publish(ctx context.Context, event models.Event) error {
	const op = "rabbitmq.Publish"

	msg, err := newPublishing(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.channel.PublishWithContext(ctx, "", r.queue.Name, false, false, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func newPublishing(event models.Event) (amqp.Publishing, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, err
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		Type:         event.Type,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
	}, nil
}

// * Handler обрабатывает одно событие из очереди
type Handler func(ctx context.Context, event models.Event) error

// * Consume читает события до отмены ctx.
// * Битые сообщения отбрасываются, ошибка обработчика возвращает сообщение в очередь один раз.
func (r *RabbitMQClient) Consume(ctx context.Context, handle Handler) error {
	const op = "rabbitmq.Consume"

	if err := r.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	deliveries, err := r.channel.Consume(r.queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%s: delivery channel closed", op)
			}

			if err := handleDelivery(ctx, d, handle); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
	}
}

func handleDelivery(ctx context.Context, d amqp.Delivery, handle Handler) error {
	var event models.Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		return d.Nack(false, false)
	}

	if err := handle(ctx, event); err != nil {
		return d.Nack(false, !d.Redelivered)
	}

	return d.Ack(false)
}

func (r *RabbitMQClient) Close() {
	_ = r.channel.Close()
	_ = r.conn.Close()
}
