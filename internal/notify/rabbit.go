package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// UserNotification is the message queued for downstream delivery channels
// (mail, LINE push) when a favorited product goes on sale.
type UserNotification struct {
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// QueuePublisher writes user notifications to a durable RabbitMQ queue.
type QueuePublisher struct {
	logger *zap.Logger
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
}

// NewQueuePublisher connects and declares the queue. The queue survives
// broker restarts and messages are published persistent.
func NewQueuePublisher(logger *zap.Logger, url, queue string) (*QueuePublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	logger.Info("rabbitmq.connected", zap.String("queue", queue))
	return &QueuePublisher{logger: logger, conn: conn, ch: ch, queue: queue}, nil
}

// Publish enqueues one notification.
func (p *QueuePublisher) Publish(ctx context.Context, n UserNotification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	p.logger.Debug("rabbitmq.published",
		zap.Int64("user_id", n.UserID),
		zap.Int64("product_id", n.ProductID))
	return nil
}

// Close releases the channel and connection.
func (p *QueuePublisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
