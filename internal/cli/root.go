package cli

import (
	"github.com/spf13/cobra"
)

// DefaultAPIURL — адрес REST API dispatcher'а по умолчанию.
const DefaultAPIURL = "http://localhost:8080"

// NewRootCmd собирает корневую команду conveyor.
//
// Вывод команд идёт в cmd.OutOrStdout/ErrOrStderr, поэтому
// в тестах его можно перехватить через SetOut/SetErr.
func NewRootCmd(version string) *cobra.Command {
	var apiURL string
	var jsonOutput bool

	root := &cobra.Command{
		Use:           "conveyor",
		Short:         "Conveyor CLI: source codes, exec contexts and tasks of a dispatcher",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&apiURL, "api-url", DefaultAPIURL, "Dispatcher API URL")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *Client { return NewClient(apiURL) }
	outputFn := func() *Output { return NewOutputTo(root.OutOrStdout(), root.ErrOrStderr(), jsonOutput) }

	root.AddCommand(
		NewSourceCodeCmd(clientFn, outputFn),
		NewExecContextCmd(clientFn, outputFn),
		NewTaskCmd(clientFn, outputFn),
	)

	return root
}
