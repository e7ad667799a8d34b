// Package form binds posted HTML form fields to typed records, validates them against a
// statically declared rule set and submits valid records through a lifecycle controller.
package form

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultRequiredMessage is shown when a required field is empty.
	DefaultRequiredMessage = "This field is required"
	// GeneralKey holds errors not tied to a single field.
	GeneralKey = "general"
)

// Values holds raw field values keyed by field name.
type Values map[string]string

// Get returns the value for name, or the empty string.
func (v Values) Get(name string) string {
	if v == nil {
		return ""
	}
	return v[name]
}

// Errors maps field names to the first failing rule's message.
type Errors map[string]string

// Get returns the message for name, or the empty string.
func (e Errors) Get(name string) string {
	if e == nil {
		return ""
	}
	return e[name]
}

// Has reports whether name failed validation.
func (e Errors) Has(name string) bool {
	_, ok := e[name]
	return ok
}

// Messages overrides the default text for the built-in rules.
type Messages struct {
	Required  string
	MinLength string
}

// Check is a custom predicate registered as a validator tag.
type Check struct {
	Tag       string
	Predicate func(ctx context.Context, value string) bool
	Message   string
}

// Field declares one input and its rules.
type Field struct {
	Name      string
	Label     string
	Required  bool
	Trim      bool
	MinLength int
	Check     *Check
	Messages  Messages
}

func (f Field) tag() string {
	var rules []string
	if f.Required {
		rules = append(rules, "required")
	} else {
		rules = append(rules, "omitempty")
	}
	if f.MinLength > 0 {
		rules = append(rules, "min="+strconv.Itoa(f.MinLength))
	}
	if f.Check != nil && f.Check.Tag != "" {
		rules = append(rules, f.Check.Tag)
	}
	return strings.Join(rules, ",")
}

func (f Field) message(rule string) string {
	switch rule {
	case "required":
		if f.Messages.Required != "" {
			return f.Messages.Required
		}
		return DefaultRequiredMessage
	case "min":
		if f.Messages.MinLength != "" {
			return f.Messages.MinLength
		}
		return fmt.Sprintf("%s must be at least %d characters", f.displayName(), f.MinLength)
	}
	if f.Check != nil && f.Check.Tag == rule && f.Check.Message != "" {
		return f.Check.Message
	}
	return f.displayName() + " is invalid"
}

func (f Field) displayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

func (f Field) normalise(value string) string {
	if f.Trim {
		return strings.TrimSpace(value)
	}
	return value
}

// Schema is the ordered list of fields a form exposes.
type Schema []Field

// Empty returns a Values map with every declared field cleared.
func (s Schema) Empty() Values {
	values := make(Values, len(s))
	for _, f := range s {
		values[f.Name] = ""
	}
	return values
}

// Lookup finds a field by name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
