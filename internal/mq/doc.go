// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий
//   - consumer.go   — потребление событий
//
// Типы сообщений:
//   - exec_context.pending — exec context создан, нужно построить граф
//   - task.result          — processor прислал результат выполнения task
//
// Exchanges:
//   - conveyor.execcontexts — события exec contexts
//   - conveyor.tasks        — события tasks
//   - conveyor.dlq          — dead letter queue
package mq
