package downloader

import (
	"errors"
	"fmt"
)

// ErrorType classifies pipeline failures.
type ErrorType int

const (
	ErrorMetadata ErrorType = iota
	ErrorPageFetch
	ErrorImageDecode
	ErrorEmptyChapter
	ErrorPDFWrite
	ErrorFilesystem
	ErrorCancelled
)

func (et ErrorType) String() string {
	switch et {
	case ErrorMetadata:
		return "metadata"
	case ErrorPageFetch:
		return "page_fetch"
	case ErrorImageDecode:
		return "image_decode"
	case ErrorEmptyChapter:
		return "empty_chapter"
	case ErrorPDFWrite:
		return "pdf_write"
	case ErrorFilesystem:
		return "filesystem"
	case ErrorCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// PageLevel reports whether errors of this type only cost a single page.
func (et ErrorType) PageLevel() bool {
	return et == ErrorPageFetch || et == ErrorImageDecode
}

// Error is a classified failure. Page-level errors end up in PageFailure
// records, all others abort exactly one chapter.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewError(t ErrorType, cause error, format string, args ...any) *Error {
	return &Error{
		Type:    t,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// WithContext attaches a key/value pair and returns the same error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

// TypeOf extracts the classification of err. ok is false for errors that
// were never classified.
func TypeOf(err error) (t ErrorType, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return 0, false
}

func IsType(err error, t ErrorType) bool {
	got, ok := TypeOf(err)
	return ok && got == t
}
