// Package schema builds the JSON Schema of every generation stage and
// validates backend output against it.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase   string `json:"phase"` // compile, semantic, decode
	Path    string `json:"path"`  // JSON-pointer-like location (e.g. "body/0/content")
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// Error is returned by Validate. It carries every leaf error found.
type Error struct {
	Schema string
	Errors []*ValidationError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, ve.Error())
	}
	return fmt.Sprintf("schema %s: %s", e.Schema, strings.Join(msgs, "; "))
}

// Validator validates raw JSON documents against JSON Schemas built as Go
// maps. It is stateless and safe for concurrent use.
type Validator struct{}

// NewValidator returns a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks raw against schema and, when out is non-nil, decodes raw
// into it. name identifies the schema in errors.
func (v *Validator) Validate(name string, schema map[string]any, raw []byte, out any) error {
	sch, err := compile(name, schema)
	if err != nil {
		return &Error{Schema: name, Errors: []*ValidationError{{Phase: "compile", Message: err.Error()}}}
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &Error{Schema: name, Errors: []*ValidationError{{Phase: "decode", Message: err.Error()}}}
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:   "semantic",
					Path:    strings.Join(cause.InstanceLocation, "/"),
					Message: cause.ErrorKind.LocalizedString(printer),
				})
			}
		} else {
			errs = append(errs, &ValidationError{Phase: "semantic", Message: err.Error()})
		}
		return &Error{Schema: name, Errors: errs}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Schema: name, Errors: []*ValidationError{{Phase: "decode", Message: err.Error()}}}
	}
	return nil
}

// compile round-trips the schema through JSON so the compiler only sees
// plain decoded values, then compiles it.
func compile(name string, schema map[string]any) (*sjsonschema.Schema, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var schemaDoc interface{}
	if err := json.Unmarshal(data, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	url := name + ".json"
	c := sjsonschema.NewCompiler()
	if err := c.AddResource(url, schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return sch, nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}
