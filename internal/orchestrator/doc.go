// Package orchestrator — сердце dispatcher'а.
//
// Orchestrator связывает компоненты:
//   - tenantqueue — события одного exec context обрабатываются по очереди
//   - engine      — построение графа tasks по source code
//   - taskstate   — охраняемые мутации tasks
//   - mq          — события exec_context.pending и task.result
//
// Все операции над tasks одного exec context (назначение, завершение,
// сброс) проходят через его очередь, поэтому граф и состояния tasks
// никогда не меняются параллельно.
package orchestrator
