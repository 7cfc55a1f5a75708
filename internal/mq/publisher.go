package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения.
type MessageType string

const (
	MessageTypeExecContextPending MessageType = "exec_context.pending"
	MessageTypeTaskResult         MessageType = "task.result"
)

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage создаёт сообщение с сериализованным payload.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// ExecContextPendingPayload — exec context ждёт построения графа.
type ExecContextPendingPayload struct {
	ExecContextID uuid.UUID `json:"exec_context_id"`
}

// TaskResultPayload — результат выполнения task от processor'а.
type TaskResultPayload struct {
	TaskID        uuid.UUID `json:"task_id"`
	ExecContextID uuid.UUID `json:"exec_context_id"`
	Result        string    `json:"result"`
	Metrics       string    `json:"metrics,omitempty"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, key RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(exchange), string(key), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			Timestamp:    msg.Timestamp,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, key, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", key,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishExecContextPending сообщает о новом exec context'е.
func (p *Publisher) PublishExecContextPending(ctx context.Context, execContextID uuid.UUID) error {
	msg, err := NewMessage(MessageTypeExecContextPending, ExecContextPendingPayload{ExecContextID: execContextID})
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeExecContexts, RoutingKeyPending, msg)
}

// PublishTaskResult передаёт результат выполнения task orchestrator'у.
func (p *Publisher) PublishTaskResult(ctx context.Context, payload TaskResultPayload) error {
	msg, err := NewMessage(MessageTypeTaskResult, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeTasks, RoutingKeyResult, msg)
}
