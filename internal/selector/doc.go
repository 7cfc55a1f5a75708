// Package selector выбирает dispatcher, к которому processor обратится следующим.
//
// Список endpoint'ов фиксируется при создании: отключённые исключаются,
// остальные сортируются по стратегии (priority — по убыванию приоритета,
// alphabet — по URL). Next обходит список по кругу: каждый endpoint
// выдаётся один раз за цикл, после исчерпания цикл перезапускается.
package selector
