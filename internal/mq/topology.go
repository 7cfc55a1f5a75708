package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	ExchangeExecContexts Exchange = "conveyor.execcontexts"
	ExchangeTasks        Exchange = "conveyor.tasks"
	ExchangeDLQ          Exchange = "conveyor.dlq"
)

const (
	QueueExecContextsPending Queue = "exec_contexts.pending"
	QueueTaskResults         Queue = "tasks.results"
	QueueDLQTasks            Queue = "dlq.tasks"
)

const (
	RoutingKeyPending  RoutingKey = "pending"
	RoutingKeyResult   RoutingKey = "result"
	RoutingKeyDLQTasks RoutingKey = "tasks"
)

type binding struct {
	queue    Queue
	key      RoutingKey
	exchange Exchange
	args     amqp.Table
}

// topology — очереди и их привязки.
// tasks.results отправляет отвергнутые сообщения в DLQ.
var topology = []binding{
	{QueueExecContextsPending, RoutingKeyPending, ExchangeExecContexts, nil},
	{QueueTaskResults, RoutingKeyResult, ExchangeTasks, amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQTasks),
	}},
	{QueueDLQTasks, RoutingKeyDLQTasks, ExchangeDLQ, nil},
}

// SetupTopology объявляет exchanges, queues и bindings. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range []Exchange{ExchangeExecContexts, ExchangeTasks, ExchangeDLQ} {
			if err := ch.ExchangeDeclare(string(ex), "direct", true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		for _, b := range topology {
			if _, err := ch.QueueDeclare(string(b.queue), true, false, false, false, b.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}
			if err := ch.QueueBind(string(b.queue), string(b.key), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}
		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Conveyor RabbitMQ Topology:

    conveyor.execcontexts (direct)
    └── exec_contexts.pending [routing: pending]
            Consumer: dispatcher orchestrator

    conveyor.tasks (direct)
    └── tasks.results [routing: result]
            Consumer: dispatcher orchestrator
            DLQ: dlq.tasks

    conveyor.dlq (direct)
    └── dlq.tasks [routing: tasks]
            Manual processing
  `
}
