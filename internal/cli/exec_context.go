package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewExecContextCmd создаёт группу команд для управления exec contexts.
func NewExecContextCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "exec-context",
		Aliases: []string{"ec"},
		Short:   "Manage exec contexts",
	}

	cmd.AddCommand(
		newExecContextStartCmd(clientFn, outputFn),
		newExecContextListCmd(clientFn, outputFn),
		newExecContextShowCmd(clientFn, outputFn),
		newExecContextTasksCmd(clientFn, outputFn),
		newExecContextStopCmd(clientFn, outputFn),
	)

	return cmd
}

var execContextHeaders = []string{"ID", "SOURCE_CODE_ID", "STATE", "STARTED", "COMPLETED", "ERROR"}

func execContextRow(ec ExecContextResponse) []string {
	return []string{ec.ID, ec.SourceCodeID, ec.State, ec.StartedAt, ec.CompletedOn, ec.Error}
}

func newExecContextStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "start SOURCE_CODE_ID",
		Short: "Create and start an exec context for a source code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ec, err := clientFn().StartExecContext(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Exec context started: %s", ec.ID))
			out.Print(execContextHeaders, [][]string{execContextRow(*ec)}, ec)
			return nil
		},
	}
}

func newExecContextListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListExecContextsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List exec contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ecs, err := clientFn().ListExecContexts(cmd.Context(), opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(ecs))
			for i, ec := range ecs {
				rows[i] = execContextRow(ec)
			}
			outputFn().Print(execContextHeaders, rows, ecs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.SourceCodeID, "source-code-id", "", "Filter by source code ID")
	cmd.Flags().StringVar(&opts.State, "state", "", "Filter by state (NONE, PRODUCING, STARTED, STOPPED, FINISHED, ERROR)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newExecContextShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show an exec context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ec, err := clientFn().GetExecContext(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			outputFn().Record(execContextHeaders, execContextRow(*ec), ec)
			return nil
		},
	}
}

func newExecContextTasksCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks ID",
		Short: "List tasks of an exec context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := clientFn().ListTasks(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "STATE", "CORE_ID", "ASSIGNED", "COMPLETED", "RESULT_RECEIVED", "VERSION"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{
					t.ID,
					t.ExecState,
					t.CoreID,
					t.AssignedOn,
					strconv.FormatBool(t.Completed),
					strconv.FormatBool(t.ResultReceived),
					strconv.FormatInt(t.Version, 10),
				}
			}
			outputFn().Print(headers, rows, tasks)
			return nil
		},
	}
}

func newExecContextStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop ID",
		Short: "Stop an exec context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ec, err := clientFn().StopExecContext(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Exec context stopped: %s", ec.ID))
			out.Print(execContextHeaders, [][]string{execContextRow(*ec)}, ec)
			return nil
		},
	}
}
