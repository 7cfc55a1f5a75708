package selector

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conveyor/internal/telemetry"
)

// ErrEmptyConfig — в dispatcher.yaml нет ни одного dispatcher'а.
var ErrEmptyConfig = errors.New("dispatcher config has no dispatchers")

// Config — содержимое dispatcher.yaml.
//
//	strategy: priority
//	dispatchers:
//	  - url: http://localhost:8080
//	    priority: 10
//	  - url: http://backup:8080
//	    disabled: true
type Config struct {
	Strategy    string             `yaml:"strategy"`
	Dispatchers []DispatcherConfig `yaml:"dispatchers"`
}

// DispatcherConfig — один dispatcher в dispatcher.yaml.
type DispatcherConfig struct {
	URL          string `yaml:"url"`
	Disabled     bool   `yaml:"disabled"`
	Priority     int    `yaml:"priority"`
	RestUsername string `yaml:"restUsername"`
	RestPassword string `yaml:"restPassword"`
}

// LoadConfig читает dispatcher.yaml.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dispatcher config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig разбирает dispatcher.yaml. Неизвестные свойства — ошибка.
func ParseConfig(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyConfig
		}
		return nil, fmt.Errorf("parse dispatcher config: %w", err)
	}
	if len(cfg.Dispatchers) == 0 {
		return nil, ErrEmptyConfig
	}
	if _, err := ParseStrategy(cfg.Strategy); err != nil {
		return nil, err
	}
	for i, d := range cfg.Dispatchers {
		if d.URL == "" {
			return nil, fmt.Errorf("dispatcher %d: empty url", i)
		}
	}
	return &cfg, nil
}

// FromConfig создаёт Selector по конфигурации.
func FromConfig(cfg *Config, metrics *telemetry.Metrics) (*Selector, error) {
	strategy, err := ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	endpoints := make([]Endpoint, 0, len(cfg.Dispatchers))
	for _, d := range cfg.Dispatchers {
		endpoints = append(endpoints, Endpoint{
			URL:      d.URL,
			Disabled: d.Disabled,
			Priority: d.Priority,
			Username: d.RestUsername,
			Password: d.RestPassword,
		})
	}

	s := New(endpoints, strategy, metrics)
	if s.Len() == 0 {
		return nil, ErrNoDispatchers
	}
	return s, nil
}
