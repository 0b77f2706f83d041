package pipeline

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/itemforge/pkg/feedback"
)

// StageError is the only error type Run returns. It names the stage that
// failed and wraps the cause.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// EnvelopeEmptyError reports an envelope whose primary content is empty or
// whitespace only.
type EnvelopeEmptyError struct{}

func (e *EnvelopeEmptyError) Error() string { return "envelope primary content is empty" }

// Resource limit names.
const (
	LimitImages = "images"
	LimitBytes  = "bytes"
)

// ResourceLimitExceededError reports visual context over a configured cap.
type ResourceLimitExceededError struct {
	Limit  string // LimitImages or LimitBytes
	Actual int64
	Max    int64
}

func (e *ResourceLimitExceededError) Error() string {
	return fmt.Sprintf("%s limit exceeded: %d > %d", e.Limit, e.Actual, e.Max)
}

// UnsupportedURISchemeError reports an image reference with a scheme that
// is not accepted.
type UnsupportedURISchemeError struct {
	URI    string
	Scheme string
}

func (e *UnsupportedURISchemeError) Error() string {
	return fmt.Sprintf("unsupported URI scheme %q in %s", e.Scheme, truncate(e.URI, 80))
}

// BackendCallError wraps a failed backend call.
type BackendCallError struct {
	Stage Stage
	Err   error
}

func (e *BackendCallError) Error() string {
	return fmt.Sprintf("%s backend call: %v", e.Stage, e.Err)
}

func (e *BackendCallError) Unwrap() error { return e.Err }

// EmptyBackendResponseError reports a backend that returned nothing.
type EmptyBackendResponseError struct {
	Stage Stage
}

func (e *EmptyBackendResponseError) Error() string {
	return fmt.Sprintf("%s backend response is empty", e.Stage)
}

// JSONParseError reports a backend response that is not JSON.
type JSONParseError struct {
	Stage Stage
	Err   error
}

func (e *JSONParseError) Error() string {
	return fmt.Sprintf("%s response is not valid JSON: %v", e.Stage, e.Err)
}

func (e *JSONParseError) Unwrap() error { return e.Err }

// SchemaValidationError reports a response that does not match its stage
// schema.
type SchemaValidationError struct {
	Stage Stage
	Err   error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("%s response failed validation: %v", e.Stage, e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// UnknownSlotTypeError reports a widget slot whose declared type is not in
// the catalog.
type UnknownSlotTypeError struct {
	ID           string
	DeclaredType string
}

func (e *UnknownSlotTypeError) Error() string {
	return fmt.Sprintf("widget %q has unknown type %q", e.ID, e.DeclaredType)
}

// FeedbackPlanMismatchError reports a feedback payload whose leaves differ
// from the plan's combinations.
type FeedbackPlanMismatchError struct {
	*feedback.PlanMismatchError
}

func (e *FeedbackPlanMismatchError) Unwrap() error { return e.PlanMismatchError }

// MissingGeneratedContentError lists referenced slots with no generated
// content.
type MissingGeneratedContentError struct {
	Kind       string
	MissingIDs []string
}

func (e *MissingGeneratedContentError) Error() string {
	return fmt.Sprintf("missing generated %s content for: %s", e.Kind, strings.Join(e.MissingIDs, ", "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
