package common

import "github.com/pkg/errors"

var (
	// ErrConfiguration marks invalid or missing detector, descriptor or
	// classifier configuration. It aborts the current command.
	ErrConfiguration = errors.New("configuration error")
	// ErrData marks malformed dataset, annotation or results input and missing
	// image files. It aborts the current run; records are never skipped.
	ErrData = errors.New("data error")
	// ErrEmptyImage is returned when a zero-size image is handed to the scanner.
	ErrEmptyImage = errors.Wrap(ErrData, "empty image")
)

// ConfigError formats a new error that satisfies errors.Is(err, ErrConfiguration).
func ConfigError(format string, args ...interface{}) error {
	return &taggedError{kind: ErrConfiguration, err: errors.Errorf(format, args...)}
}

// DataError is the ErrData counterpart of ConfigError.
func DataError(format string, args ...interface{}) error {
	return &taggedError{kind: ErrData, err: errors.Errorf(format, args...)}
}

// WrapData tags an existing error as a data error. It returns nil for nil.
func WrapData(err error, message string) error {
	if err == nil {
		return nil
	}
	return &taggedError{kind: ErrData, err: errors.Wrap(err, message)}
}

// WrapConfig tags an existing error as a configuration error. It returns nil for nil.
func WrapConfig(err error, message string) error {
	if err == nil {
		return nil
	}
	return &taggedError{kind: ErrConfiguration, err: errors.Wrap(err, message)}
}

type taggedError struct {
	kind error
	err  error
}

func (e *taggedError) Error() string { return e.kind.Error() + ": " + e.err.Error() }

func (e *taggedError) Unwrap() []error { return []error{e.kind, e.err} }
