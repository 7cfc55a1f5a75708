package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conveyor/internal/domain"
)

// ParseSourceCode разбирает YAML source code и валидирует его.
// Неизвестные поля считаются ошибкой.
func ParseSourceCode(data []byte) (*domain.SourceCodeSpec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var spec domain.SourceCodeSpec
	if err := dec.Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyProcesses
		}
		return nil, fmt.Errorf("parse source code: %w", err)
	}

	if err := Validate(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// MarshalSourceCode сериализует source code обратно в YAML.
func MarshalSourceCode(spec *domain.SourceCodeSpec) ([]byte, error) {
	return yaml.Marshal(spec)
}

// Validate выполняет полную валидацию source code.
//
// Проверяет:
// - Наличие uid и процессов
// - Уникальность кодов процессов (включая вложенные)
// - Наличие кода функции и корректность контекста
// - Не более одного уровня вложенных процессов
func Validate(spec *domain.SourceCodeSpec) error {
	if spec == nil || len(spec.Source.Processes) == 0 {
		return ErrEmptyProcesses
	}
	if spec.Source.UID == "" {
		return NewValidationError("", "uid", "source code has empty uid", ErrEmptyUID)
	}

	codes := make(map[string]bool)
	for i := range spec.Source.Processes {
		p := &spec.Source.Processes[i]
		if err := ValidateProcess(p, codes); err != nil {
			return err
		}

		if p.SubProcesses == nil {
			continue
		}
		for j := range p.SubProcesses.Processes {
			sub := &p.SubProcesses.Processes[j]
			if sub.SubProcesses != nil && len(sub.SubProcesses.Processes) > 0 {
				return NewValidationError(sub.Code, "subProcesses",
					"sub-process has its own sub-processes", ErrTooManyLevels)
			}
			if err := ValidateProcess(sub, codes); err != nil {
				return err
			}
		}
	}

	return nil
}

// ValidateProcess валидирует один процесс.
// codes — уже встреченные коды (для проверки уникальности).
func ValidateProcess(p *domain.Process, codes map[string]bool) error {
	if p.Code == "" {
		return NewValidationError("", "code", "process has empty code", ErrEmptyProcessCode)
	}
	if codes[p.Code] {
		return NewValidationError(p.Code, "code",
			fmt.Sprintf("duplicate process code: %s", p.Code), ErrDuplicateProcessCode)
	}
	codes[p.Code] = true

	if p.Function.Code == "" {
		return NewValidationError(p.Code, "function.code",
			"process has empty function code", ErrEmptyFunctionCode)
	}

	switch p.Function.Context {
	case "", domain.FunctionContextExternal, domain.FunctionContextInternal:
	default:
		return NewValidationError(p.Code, "function.context",
			fmt.Sprintf("unknown function context: %s", p.Function.Context), ErrUnknownFunctionContext)
	}

	return nil
}
