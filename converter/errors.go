package converter

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per failure kind. Use errors.Is against a returned error.
var (
	ErrUnsupportedConversion = errors.New("unsupported conversion")
	ErrLibraryLoad           = errors.New("library load failed")
	ErrDecode                = errors.New("decode failed")
	ErrRender                = errors.New("render failed")
	ErrEncode                = errors.New("encode failed")
)

// ConversionError carries the failure kind, a human readable message and the cause
type ConversionError struct {
	Kind    error
	Message string
	Err     error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *ConversionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, err error, format string, args ...any) *ConversionError {
	return &ConversionError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}
