// Conveyor CLI — инструмент командной строки для работы с dispatcher'ом:
// source codes, exec contexts и tasks через REST API.
//
// Использование:
//
//	conveyor [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	source-code   Управление source codes
//	exec-context  Запуск и просмотр exec contexts
//	task          Сброс tasks
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Conveyor/internal/cli"
	"github.com/shaiso/Conveyor/internal/config"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	_ = config.LoadDotEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(version)
	if url := config.String("CONVEYOR_API_URL", ""); url != "" {
		_ = root.PersistentFlags().Set("api-url", url)
	}

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
