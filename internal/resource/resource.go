// Package resource describes the basic resources a participant can generate.
package resource

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedResource is returned for a kind outside the generation rules.
	ErrUnsupportedResource = errors.New("unsupported resource")
	// ErrNoCombinationRules is returned for any combination request.
	ErrNoCombinationRules = errors.New("no combination rules")
)

// Kind is a basic resource type of the host economy.
type Kind string

const (
	Carbon   Kind = "carbon"
	Hydrogen Kind = "hydrogen"
	Oxygen   Kind = "oxygen"
	Silicon  Kind = "silicon"
)

// ParseKind maps a wire name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Carbon, Hydrogen, Oxygen, Silicon:
		return k, nil
	}
	return "", fmt.Errorf("parse resource kind %q: %w", s, ErrUnsupportedResource)
}

// Resource is one produced unit.
type Resource struct {
	ID           string `json:"id"`
	Kind         Kind   `json:"kind"`
	CellIndex    int    `json:"cell_index"`
	ProducedAtMs int64  `json:"produced_at_ms"`
}

// Generator holds the participant's generation rules.
type Generator struct {
	rules []Kind
}

// NewGenerator creates a generator that can make each of kinds from one charged cell.
func NewGenerator(kinds ...Kind) *Generator {
	rules := make([]Kind, len(kinds))
	copy(rules, kinds)
	return &Generator{rules: rules}
}

// Supports reports whether kind is in the generation rules.
func (g *Generator) Supports(kind Kind) bool {
	for _, k := range g.rules {
		if k == kind {
			return true
		}
	}
	return false
}

// SupportedResources lists the generation rules.
func (g *Generator) SupportedResources() []Kind {
	out := make([]Kind, len(g.rules))
	copy(out, g.rules)
	return out
}

// SupportedCombinations lists combination rules; this participant has none.
func (g *Generator) SupportedCombinations() []string {
	return []string{}
}

// Make synthesizes one unit of kind from the cell at cellIndex.
// The caller is responsible for having discharged that cell.
func (g *Generator) Make(kind Kind, cellIndex int, nowMs int64) (Resource, error) {
	if !g.Supports(kind) {
		return Resource{}, fmt.Errorf("make %s: %w", kind, ErrUnsupportedResource)
	}
	return Resource{
		ID:           uuid.New().String(),
		Kind:         kind,
		CellIndex:    cellIndex,
		ProducedAtMs: nowMs,
	}, nil
}

// Combine always fails: no combination rules are defined.
func (g *Generator) Combine(a, b Kind) (Resource, error) {
	return Resource{}, fmt.Errorf("combine %s+%s: %w", a, b, ErrNoCombinationRules)
}
