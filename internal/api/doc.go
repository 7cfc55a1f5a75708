// Package api содержит HTTP API dispatcher'а.
//
// Структура:
//   - handler.go             — Handler с DI (репозитории, orchestrator, publisher, logger)
//   - routes.go              — регистрация маршрутов
//   - middleware.go          — middleware (logging, recovery, basic auth)
//   - response.go            — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                 — Data Transfer Objects (request/response)
//   - source_code_handler.go — обработчики для /source-codes
//   - exec_context_handler.go — обработчики для /exec-contexts и /tasks
//   - southbridge_handler.go — обмен с processor'ами (/srv, /upload)
//
// REST endpoints используются CLI, southbridge — processor'ами.
package api
