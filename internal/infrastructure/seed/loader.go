// Package seed loads roles, role assignments and workflow definitions from YAML.
package seed

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/grc-approval/internal/domain/entity"
)

// Bundle is the content of a seed file
type Bundle struct {
	Roles       []entity.Role               `yaml:"roles"`
	Assignments []entity.UserRole           `yaml:"assignments"`
	Definitions []entity.WorkflowDefinition `yaml:"definitions"`
}

// Parse decodes a bundle from YAML. Unknown keys are rejected so typos in
// step fields do not silently produce an invalid workflow.
func Parse(data []byte) (*Bundle, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("seed: payload is empty")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var b Bundle
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	return &b, nil
}

// LoadReader reads a bundle from r
func LoadReader(r io.Reader) (*Bundle, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("seed: read: %w", err)
	}
	return Parse(content)
}

// LoadFile reads a bundle from path
func LoadFile(path string) (*Bundle, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	b, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("seed: %s: %w", path, err)
	}
	return b, nil
}
