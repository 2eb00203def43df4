// Package errors defines the typed failure taxonomy of the automation core.
// Transient collaborator failures (window, capture, region) are retried by
// the step orchestrator; UncalibratedError and EnvironmentMismatchError are
// terminal for the operation or the whole run.
package errors

import (
	"fmt"
)

// UncalibratedError indicates a coordinate operation before, or after a
// failed, calibration. The caller must recalibrate.
type UncalibratedError struct {
	Operation string
}

// NewUncalibratedError constructs an UncalibratedError.
func NewUncalibratedError(operation string) error {
	return &UncalibratedError{Operation: operation}
}

func (e *UncalibratedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Operation != "" {
		return fmt.Sprintf("coordinate space not calibrated: %s requires a completed anchor calibration", e.Operation)
	}
	return "coordinate space not calibrated"
}

// WindowNotFoundError indicates the target editor window could not be located.
type WindowNotFoundError struct {
	WindowTitle string
}

// NewWindowNotFoundError constructs a WindowNotFoundError.
func NewWindowNotFoundError(windowTitle string) error {
	return &WindowNotFoundError{WindowTitle: windowTitle}
}

func (e *WindowNotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("editor window %q not found", e.WindowTitle)
}

// CaptureFailedError indicates a screenshot of the target window failed.
type CaptureFailedError struct {
	WindowTitle string
	Err         error
}

// NewCaptureFailedError constructs a CaptureFailedError.
func NewCaptureFailedError(windowTitle string, err error) error {
	return &CaptureFailedError{WindowTitle: windowTitle, Err: err}
}

func (e *CaptureFailedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("capture of window %q failed: %v", e.WindowTitle, e.Err)
	}
	return fmt.Sprintf("capture of window %q failed", e.WindowTitle)
}

// Unwrap exposes the underlying error.
func (e *CaptureFailedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RegionNotFoundError indicates a named layout region could not be located
// inside a captured frame.
type RegionNotFoundError struct {
	Region string
}

// NewRegionNotFoundError constructs a RegionNotFoundError.
func NewRegionNotFoundError(region string) error {
	return &RegionNotFoundError{Region: region}
}

func (e *RegionNotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("layout region %q not found in frame", e.Region)
}

// EnvironmentMismatchError indicates the live screen contradicts the graph
// model (the zero-node guard): the wrong document is open or the viewport is
// covered. Never retried; retrying cannot fix the wrong document being open.
type EnvironmentMismatchError struct {
	Reason string
}

// NewEnvironmentMismatchError constructs an EnvironmentMismatchError.
func NewEnvironmentMismatchError(reason string) error {
	return &EnvironmentMismatchError{Reason: reason}
}

func (e *EnvironmentMismatchError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("environment mismatch: %s", e.Reason)
}

// StepError represents a failed automation step. Diagnostic carries the last
// error or warning line captured while the step ran.
type StepError struct {
	StepID     string
	Diagnostic string
	Err        error
}

// NewStepError constructs a StepError.
func NewStepError(stepID, diagnostic string, err error) error {
	return &StepError{StepID: stepID, Diagnostic: diagnostic, Err: err}
}

func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Diagnostic != "":
		return fmt.Sprintf("step %s failed: %s", e.StepID, e.Diagnostic)
	case e.Err != nil:
		return fmt.Sprintf("step %s failed: %v", e.StepID, e.Err)
	default:
		return fmt.Sprintf("step %s failed", e.StepID)
	}
}

// Unwrap exposes the root error.
func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures plan validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
