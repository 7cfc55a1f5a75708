package domain

import (
	"time"

	"github.com/google/uuid"
)

// SourceCode — декларативное описание процесса.
//
// Source code — это "программа" для dispatcher'а: упорядоченный список
// процессов, каждый из которых вызывает функцию и объявляет свои
// входные и выходные переменные. По source code строится граф tasks.
type SourceCode struct {
	// ID — уникальный идентификатор.
	ID uuid.UUID `json:"id"`

	// UID — уникальное имя, задаётся автором (например, "daily-scoring").
	UID string `json:"uid"`

	// Spec — разобранное описание процесса.
	Spec SourceCodeSpec `json:"spec"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// SourceCodeSpec — содержимое YAML-файла source code.
type SourceCodeSpec struct {
	// Version — версия формата.
	Version int `yaml:"version" json:"version"`

	// Source — описание процесса.
	Source Source `yaml:"source" json:"source"`
}

// Source — корень описания процесса.
type Source struct {
	// UID — имя source code.
	UID string `yaml:"uid" json:"uid"`

	// Variables — глобальные входные переменные exec context.
	Variables Variables `yaml:"variables,omitempty" json:"variables,omitempty"`

	// Processes — шаги в порядке объявления.
	// Порядок определяет порядок построения графа.
	Processes []Process `yaml:"processes" json:"processes"`
}

// Variables — набор переменных.
type Variables struct {
	Inputs []Variable `yaml:"inputs,omitempty" json:"inputs,omitempty"`
}

// Process — один шаг source code.
type Process struct {
	// Code — уникальный код шага.
	Code string `yaml:"code" json:"code"`

	// Name — человекочитаемое имя.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Function — вызываемая функция.
	Function FunctionRef `yaml:"function" json:"function"`

	// Inputs — входные переменные шага.
	Inputs []Variable `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	// Outputs — выходные переменные шага.
	// Попадают в пул переменных и доступны следующим шагам.
	Outputs []Variable `yaml:"outputs,omitempty" json:"outputs,omitempty"`

	// SubProcesses — вложенные процессы (один уровень вложенности).
	SubProcesses *SubProcesses `yaml:"subProcesses,omitempty" json:"sub_processes,omitempty"`

	// TimeoutSec — ограничение времени выполнения функции.
	TimeoutSec int `yaml:"timeout,omitempty" json:"timeout_sec,omitempty"`
}

// SubProcesses — вложенные процессы шага.
type SubProcesses struct {
	// Logic — как выполнять вложенные процессы: "and", "or", "sequential".
	Logic string `yaml:"logic,omitempty" json:"logic,omitempty"`

	Processes []Process `yaml:"processes" json:"processes"`
}

// FunctionContext — где выполняется функция.
type FunctionContext string

const (
	// FunctionContextExternal — функция выполняется на processor'е.
	FunctionContextExternal FunctionContext = "external"

	// FunctionContextInternal — функция выполняется внутри dispatcher'а.
	FunctionContextInternal FunctionContext = "internal"
)

// FunctionRef — ссылка на функцию.
type FunctionRef struct {
	// Code — код функции (например, "delay", "http").
	Code string `yaml:"code" json:"code"`

	// Context — external (по умолчанию) или internal.
	Context FunctionContext `yaml:"context,omitempty" json:"context,omitempty"`

	// Params — параметры функции.
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// IsInternal возвращает true для функций, выполняемых dispatcher'ом.
func (f FunctionRef) IsInternal() bool {
	return f.Context == FunctionContextInternal
}

// Sourcing — откуда берётся значение переменной.
type Sourcing string

const (
	SourcingDispatcher Sourcing = "dispatcher"
	SourcingDisk       Sourcing = "disk"
	SourcingGit        Sourcing = "git"
)

// Variable — объявление переменной.
type Variable struct {
	Name     string   `yaml:"name" json:"name"`
	Sourcing Sourcing `yaml:"sourcing,omitempty" json:"sourcing,omitempty"`
}

// FindProcess ищет процесс по коду, в том числе среди вложенных.
func (s *SourceCodeSpec) FindProcess(code string) *Process {
	for i := range s.Source.Processes {
		p := &s.Source.Processes[i]
		if p.Code == code {
			return p
		}
		if p.SubProcesses == nil {
			continue
		}
		for j := range p.SubProcesses.Processes {
			if p.SubProcesses.Processes[j].Code == code {
				return &p.SubProcesses.Processes[j]
			}
		}
	}
	return nil
}
