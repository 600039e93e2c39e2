package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind categorizes pipeline failures. The batch driver decides whether to
// skip an image or abort the run from the kind alone.
type Kind string

const (
	KindDecode                 Kind = "decode"
	KindInvalidSliceRange      Kind = "invalid_slice_range"
	KindClassifierApply        Kind = "classifier_apply"
	KindDegenerateRegion       Kind = "degenerate_region"
	KindMissingClassifierModel Kind = "missing_classifier_model"
	KindConfiguration          Kind = "configuration"
	KindOutput                 Kind = "output"
	KindInvalidSelection       Kind = "invalid_selection"
	KindProcessing             Kind = "processing"
)

// Error is a categorized pipeline error. File and Stage are filled in as the
// error travels up through the batch driver.
type Error struct {
	Kind    Kind
	File    string
	Stage   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Stage != "" {
		msg += " at " + e.Stage
	}
	if e.File != "" {
		msg += " in " + e.File
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Kind so callers can use errors.Is(err, ErrDecode).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.File == "" && t.Stage == "" && t.Message == ""
}

var (
	ErrDecode                 = &Error{Kind: KindDecode}
	ErrInvalidSliceRange      = &Error{Kind: KindInvalidSliceRange}
	ErrClassifierApply        = &Error{Kind: KindClassifierApply}
	ErrDegenerateRegion       = &Error{Kind: KindDegenerateRegion}
	ErrMissingClassifierModel = &Error{Kind: KindMissingClassifierModel}
	ErrConfiguration          = &Error{Kind: KindConfiguration}
	ErrOutput                 = &Error{Kind: KindOutput}
	ErrInvalidSelection       = &Error{Kind: KindInvalidSelection}
	ErrProcessing             = &Error{Kind: KindProcessing}
)

func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NewDecodeError(file string, cause error) *Error {
	return &Error{Kind: KindDecode, File: file, Stage: "decode", Message: "could not open image", Cause: cause}
}

func NewInvalidSliceRangeError(minSlice, sliceCount int) *Error {
	return &Error{
		Kind:    KindInvalidSliceRange,
		Message: fmt.Sprintf("min slice %d outside [1, %d]", minSlice, sliceCount),
	}
}

func NewClassifierApplyError(message string, cause error) *Error {
	return &Error{Kind: KindClassifierApply, Message: message, Cause: cause}
}

func NewDegenerateRegionError(region int) *Error {
	return &Error{Kind: KindDegenerateRegion, Message: fmt.Sprintf("region %d has no pixels", region)}
}

func NewMissingClassifierModelError(what string) *Error {
	return &Error{Kind: KindMissingClassifierModel, Message: "no model selected for " + what}
}

func NewConfigurationError(message string, cause error) *Error {
	return &Error{Kind: KindConfiguration, Message: message, Cause: cause}
}

func NewOutputError(file string, cause error) *Error {
	return &Error{Kind: KindOutput, File: file, Stage: "output", Message: "could not write results", Cause: cause}
}

// NewInvalidSelectionError reports a channel choice the image cannot satisfy.
func NewInvalidSelectionError(what string, channel, channels int) *Error {
	return &Error{
		Kind:    KindInvalidSelection,
		Message: fmt.Sprintf("%s channel %d outside [1, %d]", what, channel, channels),
	}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// WithContext annotates err with the file and stage it occurred in. Errors
// outside the taxonomy are wrapped as the given fallback kind.
func WithContext(err error, file, stage string, fallback Kind) error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		annotated := *e
		if annotated.File == "" {
			annotated.File = file
		}
		if annotated.Stage == "" {
			annotated.Stage = stage
		}
		return &annotated
	}
	return &Error{Kind: fallback, File: file, Stage: stage, Cause: err}
}

// Fatal reports whether the error must stop the whole batch.
func Fatal(err error) bool {
	k, ok := KindOf(err)
	if !ok {
		return false
	}
	return k == KindMissingClassifierModel || k == KindConfiguration
}
