// Package tenantqueue реализует очередь событий, разбитую по ключу tenant'а.
//
// Гарантии:
//   - события одного tenant'а обрабатываются строго в порядке постановки,
//     одним worker'ом (никогда двумя одновременно);
//   - разные tenant'ы обрабатываются параллельно;
//   - worker, не получивший событий за IdleTimeout, завершается; запись
//     tenant'а и поставленные за это время события сохраняются, следующий
//     Submit поднимает новый worker;
//   - ошибка или panic обработчика логируется, worker переходит к следующему
//     событию (повторов нет).
//
// Worker можно прервать (Interrupt): событие в обработке не возвращается
// в очередь, остальные события ждут следующего worker'а.
package tenantqueue
