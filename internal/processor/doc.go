// Package processor — сторона исполнителя.
//
// Processor держит несколько ядер (cores). Каждое ядро выполняет
// один task за раз через Executor, выбранный по коду функции.
//
// Цикл обмена (exchange loop) раз в PollInterval:
//  1. Выбирает dispatcher через selector (round-robin с перезапуском цикла)
//  2. Отправляет отчёты о выполненных tasks, полученных от этого dispatcher'а
//  3. Запрашивает tasks для свободных ядер
//  4. Загружает результаты принятых отчётов (/rest/v1/upload/{taskId})
//
// При ошибке транспорта dispatcher пропускается, обмен пробуется
// со следующим (failover).
package processor
