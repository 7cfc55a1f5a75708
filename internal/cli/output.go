package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Output печатает результаты команд: данные в stdout, сообщения в stderr.
// В режиме --json данные печатаются как есть, без таблиц.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutputTo создаёт Output поверх заданных writer'ов.
func NewOutputTo(w, errW io.Writer, jsonMode bool) *Output {
	return &Output{jsonMode: jsonMode, w: w, errW: errW}
}

// Print печатает список строк таблицей либо v в JSON.
func (o *Output) Print(headers []string, rows [][]string, v any) {
	if o.jsonMode {
		o.JSON(v)
		return
	}
	o.Table(headers, rows)
}

// Record печатает один объект: колонка "поле: значение" либо v в JSON.
func (o *Output) Record(headers []string, row []string, v any) {
	if o.jsonMode {
		o.JSON(v)
		return
	}
	tw := o.tab()
	for i, h := range headers {
		var cell string
		if i < len(row) {
			cell = row[i]
		}
		fmt.Fprintf(tw, "%s:\t%s\n", h, orDash(cell))
	}
	tw.Flush()
}

// Table печатает таблицу; пустые ячейки заменяются на "-".
func (o *Output) Table(headers []string, rows [][]string) {
	tw := o.tab()
	writeRow(tw, headers)

	rule := make([]string, len(headers))
	for i, h := range headers {
		rule[i] = strings.Repeat("-", len(h))
	}
	writeRow(tw, rule)

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = orDash(cell)
		}
		writeRow(tw, cells)
	}
	tw.Flush()
}

// JSON печатает v с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(o.errW, "failed to encode output: %v\n", err)
	}
}

// Text печатает s, завершая переводом строки.
func (o *Output) Text(s string) {
	io.WriteString(o.w, s)
	if !strings.HasSuffix(s, "\n") {
		io.WriteString(o.w, "\n")
	}
}

// Success печатает сообщение о выполненной операции.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

func (o *Output) tab() *tabwriter.Writer {
	return tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
}

func writeRow(w io.Writer, cells []string) {
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
