package plan

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a run plan from the given YAML file path.
//
// Unknown fields are rejected so a typo'd key fails loudly instead of
// silently falling back to a default. Defaults are applied to optional
// fields after parsing.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("plan file not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading plan: %s", path)
		}
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses and validates a run plan from raw YAML bytes.
func LoadFromBytes(data []byte) (*Plan, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("plan file is empty")
	}

	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}

	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
