// Package cli реализует инструмент командной строки Conveyor.
//
// CLI работает с REST API dispatcher'а по HTTP и не импортирует
// внутренние пакеты системы: DTO ответов продублированы в client.go.
//
// # Client
//
// HTTP-клиент dispatcher'а. Разбирает обёртки ответов
// (data / data+total / error) и превращает ошибки API в error.
//
//	client := cli.NewClient("http://localhost:8080")
//	codes, err := client.ListSourceCodes(ctx)
//
// # Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные пишутся в stdout, сообщения в stderr:
//
//	conveyor exec-context tasks <id> --json | jq .
//
// # Commands
//
//   - source-code: create, list, show
//   - exec-context: start, list, show, tasks, stop
//   - task: reset
//
// Группы создаются фабриками (NewSourceCodeCmd и т.д.), которые
// принимают clientFn и outputFn: Client и Output создаются лениво,
// после разбора PersistentFlags.
package cli
