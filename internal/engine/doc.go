// Package engine строит граф tasks exec context'а по source code.
//
// Включает:
//   - parser.go  — разбор и валидация source code (YAML)
//   - graph.go   — граф tasks: вершины и рёбра parent → child
//   - builder.go — GraphBuilder: развёртывание процессов в tasks
//
// Граф строится последовательно по процессам в порядке объявления.
// Каждый процесс связывается со всеми tasks предыдущего процесса
// (frontier), поэтому рёбра всегда идут от старых вершин к новым
// и циклы невозможны.
package engine
