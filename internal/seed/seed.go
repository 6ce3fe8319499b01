// Package seed holds the hard-coded initial project snapshot.
package seed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"launchboard/internal/domain"
)

//go:embed project.yml
var projectYAML []byte

// Default returns a fresh copy of the seed project. Each call decodes the
// embedded document again, so callers may mutate the result freely.
func Default() domain.Project {
	p, err := Parse(projectYAML)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse decodes and validates a project document in the seed YAML layout.
func Parse(data []byte) (domain.Project, error) {
	var p domain.Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return domain.Project{}, fmt.Errorf("invalid seed yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return domain.Project{}, fmt.Errorf("invalid seed: %w", err)
	}
	return p, nil
}
