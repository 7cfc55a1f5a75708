// Package telemetry — логи и метрики процессов Conveyor.
//
// Логгер настраивается переменными LOG_LEVEL и LOG_FORMAT и может
// передаваться через context (WithLogger, FromContext): так API
// добавляет request_id ко всем записям запроса.
//
// Metrics собирает счётчики очереди tenant'ов, переходов task'ов,
// построения графа, выбора dispatcher'а, reaper'а и HTTP API.
// Методы Metrics допускают nil-получатель.
package telemetry
