// Package persona loads the interviewer personas used by mock interviews.
package persona

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
)

//go:embed personas.yaml
var defaultYAML []byte

type entry struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Role         string   `yaml:"role"`
	Style        string   `yaml:"style"`
	Description  string   `yaml:"description"`
	Types        []string `yaml:"types"`
	Difficulties []string `yaml:"difficulties"`
}

func (e entry) matches(interviewType, difficulty string) bool {
	return (len(e.Types) == 0 || slices.Contains(e.Types, interviewType)) &&
		(len(e.Difficulties) == 0 || slices.Contains(e.Difficulties, difficulty))
}

func (e entry) persona() domain.Persona {
	return domain.Persona{ID: e.ID, Name: e.Name, Role: e.Role, Style: e.Style, Description: e.Description}
}

// Catalog is an immutable set of personas.
type Catalog struct {
	entries []entry
	pick    func(n int) int
}

// Default parses the embedded catalog.
func Default() (*Catalog, error) { return Parse(defaultYAML) }

// Parse builds a catalog from YAML. At least one persona is required and ids must be unique.
func Parse(b []byte) (*Catalog, error) {
	var doc struct {
		Personas []entry `yaml:"personas"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("op=persona.parse: %w", err)
	}
	if len(doc.Personas) == 0 {
		return nil, fmt.Errorf("op=persona.parse: catalog is empty")
	}
	seen := map[string]bool{}
	for _, e := range doc.Personas {
		if e.ID == "" || e.Name == "" {
			return nil, fmt.Errorf("op=persona.parse: persona requires id and name")
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("op=persona.parse: duplicate persona %q", e.ID)
		}
		seen[e.ID] = true
	}
	return &Catalog{entries: doc.Personas, pick: rand.IntN}, nil
}

// WithPicker returns a copy of the catalog that draws indexes from pick.
func (c *Catalog) WithPicker(pick func(n int) int) *Catalog {
	cp := *c
	cp.pick = pick
	return &cp
}

// Select returns a random persona suited to the interview settings, falling
// back to the whole catalog when none matches.
func (c *Catalog) Select(interviewType, difficulty string) domain.Persona {
	var pool []entry
	for _, e := range c.entries {
		if e.matches(interviewType, difficulty) {
			pool = append(pool, e)
		}
	}
	if len(pool) == 0 {
		pool = c.entries
	}
	return pool[c.pick(len(pool))].persona()
}

// Len returns the number of personas.
func (c *Catalog) Len() int { return len(c.entries) }
