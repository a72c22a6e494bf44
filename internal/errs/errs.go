// Package errs defines the coded application errors shared by the bot's
// components. Every error type carries a stable code so callers can decide
// how to propagate a failure without matching on message text.
package errs

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown    = "UNKNOWN"
	CodeCredential = "CREDENTIAL"
	CodeNetwork    = "NETWORK"
	CodeAnalysis   = "ANALYSIS"
	CodeExport     = "EXPORT"
	CodeValidation = "VALIDATION"
	CodeDatabase   = "DATABASE"
	CodeConfig     = "CONFIG"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't contain one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(ApplicationError); ok && appErr.Code() == code {
			return true
		}
		err = errors.Unwrap(err)
	}

	return false
}

// CredentialError reports a missing or placeholder credential.
type CredentialError struct {
	base Error
}

func (e *CredentialError) Error() string { return e.base.Error() }
func (e *CredentialError) Code() string  { return e.base.Code() }
func (e *CredentialError) Unwrap() error { return e.base.Unwrap() }

func NewCredentialError(message string, cause error) error {
	return &CredentialError{base: Error{code: CodeCredential, message: message, err: cause}}
}

// NetworkError reports a failed or timed out outbound call.
type NetworkError struct {
	base Error
}

func (e *NetworkError) Error() string { return e.base.Error() }
func (e *NetworkError) Code() string  { return e.base.Code() }
func (e *NetworkError) Unwrap() error { return e.base.Unwrap() }

func NewNetworkError(message string, cause error) error {
	return &NetworkError{base: Error{code: CodeNetwork, message: message, err: cause}}
}

// AnalysisError reports an analyzer failure or an unparsable structured payload.
type AnalysisError struct {
	base Error
}

func (e *AnalysisError) Error() string { return e.base.Error() }
func (e *AnalysisError) Code() string  { return e.base.Code() }
func (e *AnalysisError) Unwrap() error { return e.base.Unwrap() }

func NewAnalysisError(message string, cause error) error {
	return &AnalysisError{base: Error{code: CodeAnalysis, message: message, err: cause}}
}

// ExportError reports a file write or URL construction failure.
type ExportError struct {
	base Error
}

func (e *ExportError) Error() string { return e.base.Error() }
func (e *ExportError) Code() string  { return e.base.Code() }
func (e *ExportError) Unwrap() error { return e.base.Unwrap() }

func NewExportError(message string, cause error) error {
	return &ExportError{base: Error{code: CodeExport, message: message, err: cause}}
}

// ValidationError reports missing or malformed inbound data.
type ValidationError struct {
	base Error
}

func (e *ValidationError) Error() string { return e.base.Error() }
func (e *ValidationError) Code() string  { return e.base.Code() }
func (e *ValidationError) Unwrap() error { return e.base.Unwrap() }

func NewValidationError(message string, cause error) error {
	return &ValidationError{base: Error{code: CodeValidation, message: message, err: cause}}
}

type DatabaseError struct {
	base Error
}

func (e *DatabaseError) Error() string { return e.base.Error() }
func (e *DatabaseError) Code() string  { return e.base.Code() }
func (e *DatabaseError) Unwrap() error { return e.base.Unwrap() }

func NewDatabaseError(message string, cause error) error {
	return &DatabaseError{base: Error{code: CodeDatabase, message: message, err: cause}}
}

type ConfigError struct {
	base Error
}

func (e *ConfigError) Error() string { return e.base.Error() }
func (e *ConfigError) Code() string  { return e.base.Code() }
func (e *ConfigError) Unwrap() error { return e.base.Unwrap() }

func NewConfigError(message string, cause error) error {
	return &ConfigError{base: Error{code: CodeConfig, message: message, err: cause}}
}
