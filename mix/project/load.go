package project

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML project snapshot, normalizes and validates it.
// Unknown fields are rejected.
func Parse(data []byte) (*MixProject, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p MixProject
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("project: decode: %w", err)
	}

	p.Normalize()

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// LoadFile reads and parses a YAML project file.
func LoadFile(path string) (*MixProject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("project: read %s: %w", path, err)
	}

	return Parse(data)
}

// Marshal encodes p as YAML.
func Marshal(p *MixProject) ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("project: encode: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("project: encode: %w", err)
	}

	return buf.Bytes(), nil
}
