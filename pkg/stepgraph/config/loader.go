package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sections are the top-level keys Load reads.
var Sections = []string{"run", "log", "checkpoint", "events", "llm", "inputs"}

var decoders = map[string]func([]byte) (Config, error){
	".yaml": FromYAML,
	".yml":  FromYAML,
	".json": FromJSON,
}

// FromFile reads a YAML (.yaml, .yml) or JSON (.json) file. Any top-level
// keys are accepted; use LoadFile for a settings file.
func FromFile(path string) (Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return decode(data)
}

// LoadFile reads a settings file and returns its Settings. A top-level key
// that is not one of Sections, or a section that is not a mapping, is an
// error so that a misspelled section does not silently fall back to defaults.
func LoadFile(path string) (Settings, error) {
	c, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	if err := CheckSections(c); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return Load(c), nil
}

// CheckSections reports every top-level key of c that Load would ignore.
func CheckSections(c Config) error {
	known := make(map[string]bool, len(Sections))
	for _, s := range Sections {
		known[s] = true
	}

	var errs []error
	for _, key := range c.Keys() {
		if !known[key] {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownSection, key))
			continue
		}
		if v := c.data[key]; v != nil {
			if _, ok := asMap(v); !ok {
				errs = append(errs, fmt.Errorf("%w: %q is %T", ErrSectionNotMapping, key, v))
			}
		}
	}
	return errors.Join(errs...)
}

// FromYAML parses a YAML document. An empty document gives an empty Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses a JSON object.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}
