package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyFunctionExec — processor прислал пустой результат выполнения.
var ErrEmptyFunctionExec = errors.New("empty function exec result")

// SystemExecResult — результат запуска одной функции на processor'е.
type SystemExecResult struct {
	FunctionCode string `json:"function_code"`
	IsOk         bool   `json:"is_ok"`
	ExitCode     int    `json:"exit_code"`
	Console      string `json:"console,omitempty"`
}

// FunctionExec — полный отчёт о запуске функций task'а.
//
// GeneralExec заполняется, когда processor не смог даже запустить функцию
// (например, не удалось подготовить входные данные). В этом случае Exec пуст.
type FunctionExec struct {
	Exec        *SystemExecResult  `json:"exec,omitempty"`
	GeneralExec *SystemExecResult  `json:"general_exec,omitempty"`
	PreExecs    []SystemExecResult `json:"pre_execs,omitempty"`
	PostExecs   []SystemExecResult `json:"post_execs,omitempty"`
}

// ParseFunctionExec разбирает JSON с результатами функций.
func ParseFunctionExec(raw string) (*FunctionExec, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyFunctionExec
	}
	var fe FunctionExec
	if err := json.Unmarshal([]byte(raw), &fe); err != nil {
		return nil, fmt.Errorf("unmarshal function exec: %w", err)
	}
	return &fe, nil
}

// String сериализует FunctionExec в JSON.
func (fe *FunctionExec) String() string {
	data, err := json.Marshal(fe)
	if err != nil {
		return ""
	}
	return string(data)
}

// Main возвращает результат, по которому судят об успехе:
// GeneralExec, если он есть, иначе Exec.
func (fe *FunctionExec) Main() *SystemExecResult {
	if fe.GeneralExec != nil {
		return fe.GeneralExec
	}
	return fe.Exec
}

// AllFunctionsAreOk возвращает true, только если основная функция и все
// pre/post функции завершились успешно.
func (fe *FunctionExec) AllFunctionsAreOk() bool {
	main := fe.Main()
	if main == nil || !main.IsOk {
		return false
	}
	for _, r := range fe.PreExecs {
		if !r.IsOk {
			return false
		}
	}
	for _, r := range fe.PostExecs {
		if !r.IsOk {
			return false
		}
	}
	return true
}
