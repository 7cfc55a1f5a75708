package domain

import (
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// VariableRef — ссылка на конкретную переменную exec context'а.
type VariableRef struct {
	// ID — идентификатор переменной.
	ID uuid.UUID `yaml:"id" json:"id"`

	// Name — объявленное имя.
	Name string `yaml:"name" json:"name"`

	// Sourcing — источник значения.
	Sourcing Sourcing `yaml:"sourcing,omitempty" json:"sourcing,omitempty"`

	// TaskID — task, производящий переменную (для выходов).
	TaskID *uuid.UUID `yaml:"taskId,omitempty" json:"task_id,omitempty"`

	// Uploaded — значение загружено на dispatcher.
	Uploaded bool `yaml:"uploaded,omitempty" json:"uploaded,omitempty"`
}

// TaskParams — содержимое Task.Params.
//
// Это то, что processor получает для выполнения: функция, её параметры
// и ссылки на входные/выходные переменные.
type TaskParams struct {
	Version       int                      `yaml:"version"`
	ExecContextID uuid.UUID                `yaml:"execContextId"`
	ProcessCode   string                   `yaml:"processCode"`
	Function      FunctionRef              `yaml:"function"`
	Inputs        map[string][]VariableRef `yaml:"inputs,omitempty"`
	Outputs       []VariableRef            `yaml:"outputs,omitempty"`
	TimeoutSec    int                      `yaml:"timeout,omitempty"`
}

// ParseTaskParams разбирает YAML с параметрами task.
func ParseTaskParams(raw string) (*TaskParams, error) {
	var tp TaskParams
	if err := yaml.Unmarshal([]byte(raw), &tp); err != nil {
		return nil, fmt.Errorf("unmarshal task params: %w", err)
	}
	return &tp, nil
}

// String сериализует параметры в YAML.
func (tp *TaskParams) String() (string, error) {
	data, err := yaml.Marshal(tp)
	if err != nil {
		return "", fmt.Errorf("marshal task params: %w", err)
	}
	return string(data), nil
}
