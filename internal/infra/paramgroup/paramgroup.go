// Package paramgroup implements the ParameterGroup contract:
// typed configuration containers exposing current/default/min/max values
// with validate-on-set bounds checking and reset-to-default.
//
// Loading and storing a group's serialized form against a persisted
// parameters snapshot is explicitly out of scope — this package is the
// validated in-memory contract only; callers that do persist a group's
// current values do so through their own repository, keyed by whatever
// ParametersId that snapshot format uses.
package paramgroup

import (
	"errors"
	"fmt"

	"github.com/sonata-sse/sse-core/internal/domain"
)

// ErrUnknownField is returned by Set/Field for a name not declared in the
// group.
var ErrUnknownField = errors.New("paramgroup: no such field in group")

// ErrParameterOutOfBounds re-exports domain's sentinel so callers can
// errors.Is against either package without caring which layer raised it.
var ErrParameterOutOfBounds = domain.ErrParameterOutOfBounds

// Field is one bounded, named parameter within a group.
type Field struct {
	Name    string
	Current float64
	Default float64
	Min     float64
	Max     float64
}

// InBounds reports whether v is within [Min, Max] for this field.
func (f Field) InBounds(v float64) bool { return v >= f.Min && v <= f.Max }

// Group is an ordered, named collection of Fields, validated as a unit.
type Group struct {
	Name   string
	fields map[string]*Field
	order  []string
}

// NewGroup constructs a Group named name from the given fields. Fields are
// stored as given: NewGroup neither validates nor clamps a field's Current
// against its bounds; only Set enforces them.
func NewGroup(name string, fields ...Field) *Group {
	g := &Group{Name: name, fields: make(map[string]*Field, len(fields))}
	for i := range fields {
		f := fields[i]
		g.fields[f.Name] = &f
		g.order = append(g.order, f.Name)
	}
	return g
}

// Get returns the named field's current value. ok is false if no such
// field exists in the group.
func (g *Group) Get(name string) (value float64, ok bool) {
	f, ok := g.fields[name]
	if !ok {
		return 0, false
	}
	return f.Current, true
}

// Set validates v against the named field's [Min, Max] bounds and, if
// valid, updates Current. Returns ErrUnknownField or
// ErrParameterOutOfBounds.
func (g *Group) Set(name string, v float64) error {
	f, ok := g.fields[name]
	if !ok {
		return fmt.Errorf("paramgroup: %s.%s: %w", g.Name, name, ErrUnknownField)
	}
	if !f.InBounds(v) {
		return fmt.Errorf("paramgroup: %s.%s: %w (got %v, want [%v, %v])",
			g.Name, name, ErrParameterOutOfBounds, v, f.Min, f.Max)
	}
	f.Current = v
	return nil
}

// ResetToDefault restores every field in the group to its Default value.
func (g *Group) ResetToDefault() {
	for _, name := range g.order {
		g.fields[name].Current = g.fields[name].Default
	}
}

// Field returns a copy of the named field's full descriptor (current,
// default, min, max). ok is false if no such field exists.
func (g *Group) Field(name string) (Field, bool) {
	f, ok := g.fields[name]
	if !ok {
		return Field{}, false
	}
	return *f, true
}

// Fields returns a snapshot of every field in declared order.
func (g *Group) Fields() []Field {
	out := make([]Field, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, *g.fields[name])
	}
	return out
}
