package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewSourceCodeCmd создаёт группу команд для управления source codes.
func NewSourceCodeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "source-code",
		Aliases: []string{"sc"},
		Short:   "Manage source codes",
	}

	cmd.AddCommand(
		newSourceCodeListCmd(clientFn, outputFn),
		newSourceCodeCreateCmd(clientFn, outputFn),
		newSourceCodeShowCmd(clientFn, outputFn),
	)

	return cmd
}

var sourceCodeHeaders = []string{"ID", "UID", "PROCESSES", "CREATED"}

func sourceCodeRow(sc SourceCodeResponse) []string {
	return []string{sc.ID, sc.UID, strconv.Itoa(sc.Processes), sc.CreatedAt}
}

func newSourceCodeListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List source codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			codes, err := clientFn().ListSourceCodes(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, len(codes))
			for i, sc := range codes {
				rows[i] = sourceCodeRow(sc)
			}
			outputFn().Print(sourceCodeHeaders, rows, codes)
			return nil
		},
	}
}

func newSourceCodeCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Upload a source code from a YAML file",
		Long: `Upload a source code from a YAML file.

Use --file - to read the YAML from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readSpec(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			sc, err := clientFn().CreateSourceCode(cmd.Context(), data)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Source code created: %s", sc.ID))
			out.Print(sourceCodeHeaders, [][]string{sourceCodeRow(*sc)}, sc)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to source code YAML (- for stdin)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newSourceCodeShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a source code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := clientFn().GetSourceCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			if out.jsonMode {
				out.JSON(sc)
				return nil
			}
			out.Record(sourceCodeHeaders, sourceCodeRow(*sc), sc)

			spec, err := yaml.Marshal(sc.Spec)
			if err != nil {
				return fmt.Errorf("failed to render spec: %w", err)
			}
			out.Text("\n" + string(spec))
			return nil
		},
	}
}

// readSpec читает YAML из файла или stdin и проверяет, что это YAML.
func readSpec(stdin io.Reader, file string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read source code: %w", err)
	}

	var probe map[string]any
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("source code is not valid YAML: %w", err)
	}
	return data, nil
}
