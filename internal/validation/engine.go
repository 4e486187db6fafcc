// Package validation maps form fields to deterministic validity verdicts and
// user-facing error messages. It knows nothing about views or the network.
package validation

import (
	"maps"
	"strings"
)

// Kind distinguishes text inputs from checkboxes.
type Kind int

const (
	Text Kind = iota
	Checkbox
)

// Value is the current content of one field.
type Value struct {
	Kind    Kind
	Text    string
	Checked bool
}

// TextValue returns a text field value.
func TextValue(s string) Value { return Value{Kind: Text, Text: s} }

// CheckboxValue returns a checkbox field value.
func CheckboxValue(checked bool) Value { return Value{Kind: Checkbox, Checked: checked} }

// Trimmed returns v with surrounding whitespace removed from its text.
func (v Value) Trimmed() Value {
	if v.Kind == Text {
		v.Text = strings.TrimSpace(v.Text)
	}
	return v
}

// Snapshot is a read-only view of every field of a form, used by rules that
// compare against a sibling field.
type Snapshot struct {
	values map[string]Value
}

// NewSnapshot copies values into a Snapshot.
func NewSnapshot(values map[string]Value) Snapshot {
	return Snapshot{values: maps.Clone(values)}
}

// Get returns the trimmed value of field, or the zero Value if absent.
func (s Snapshot) Get(field string) Value {
	return s.values[field].Trimmed()
}

// Result is the verdict for one field. Error is empty when Valid.
type Result struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func ok() Result                 { return Result{Valid: true} }
func fail(message string) Result { return Result{Error: message} }

// Rule validates a single trimmed field value. Name identifies the rule in
// field state.
type Rule struct {
	Name  string
	Check func(v Value, snap Snapshot) Result
}

// Engine is a registry of one rule per field plus the dependency edges
// between fields.
type Engine struct {
	rules      map[string]Rule
	dependents map[string][]string
}

// NewEngine returns an empty Engine.
func NewEngine() *Engine {
	return &Engine{
		rules:      make(map[string]Rule),
		dependents: make(map[string][]string),
	}
}

// Register sets the rule for field, replacing any previous one.
func (e *Engine) Register(field string, r Rule) *Engine {
	e.rules[field] = r
	return e
}

// DependsOn records that field must be re-evaluated whenever dependency
// changes.
func (e *Engine) DependsOn(field, dependency string) *Engine {
	for _, f := range e.dependents[dependency] {
		if f == field {
			return e
		}
	}
	e.dependents[dependency] = append(e.dependents[dependency], field)
	return e
}

// Dependents lists the fields to re-evaluate after field changes.
func (e *Engine) Dependents(field string) []string {
	return e.dependents[field]
}

// RuleName returns the name of the rule registered for field, or "".
func (e *Engine) RuleName(field string) string {
	return e.rules[field].Name
}

// Evaluate runs the rule registered for field against the trimmed value.
// A field without a rule is valid.
func (e *Engine) Evaluate(field string, v Value, snap Snapshot) Result {
	r, found := e.rules[field]
	if !found || r.Check == nil {
		return ok()
	}
	return r.Check(v.Trimmed(), snap)
}
