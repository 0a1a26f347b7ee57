package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline error taxonomy. Match with errors.Is.
var (
	ErrUnsupportedFormat    = errors.New("unsupported format")
	ErrCorruptInput         = errors.New("corrupt input")
	ErrRecognitionFailure   = errors.New("recognition failure")
	ErrRedactionIncomplete  = errors.New("redaction incomplete")
	ErrExtractionService    = errors.New("extraction service error")
	ErrMalformedModelOutput = errors.New("malformed model output")
	ErrUnreconciledSpans    = errors.New("unreconciled redaction spans")
	ErrStageCrashed         = errors.New("pipeline stage crashed")
)

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
	ErrDatabase     = errors.New("database error")
)

// Error codes carried by AppError.Code.
const (
	CodeUnsupportedFormat    = "UnsupportedFormat"
	CodeCorruptInput         = "CorruptInput"
	CodeRecognitionFailure   = "RecognitionFailure"
	CodeRedactionIncomplete  = "RedactionIncomplete"
	CodeExtractionService    = "ExtractionServiceError"
	CodeMalformedModelOutput = "MalformedModelOutput"
	CodeUnreconciledSpans    = "UnreconciledSpans"
	CodeStageCrashed         = "StageCrashed"
	CodeConfig               = "CONFIG_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func UnsupportedFormat(format string) error {
	return NewAppError(CodeUnsupportedFormat, fmt.Sprintf("format %q is not supported", format), ErrUnsupportedFormat)
}

func CorruptInput(format string, cause error) error {
	return NewAppError(CodeCorruptInput, fmt.Sprintf("cannot read %s stream", format), errors.Join(ErrCorruptInput, cause))
}

func RecognitionFailure(message string, cause error) error {
	return NewAppError(CodeRecognitionFailure, message, errors.Join(ErrRecognitionFailure, cause))
}

func ExtractionServiceError(message string, cause error) error {
	return NewAppError(CodeExtractionService, message, errors.Join(ErrExtractionService, cause))
}

func MalformedModelOutput(message string, cause error) error {
	return NewAppError(CodeMalformedModelOutput, message, errors.Join(ErrMalformedModelOutput, cause))
}

// StageCrashed wraps a recovered panic value.
func StageCrashed(recovered any) error {
	return NewAppError(CodeStageCrashed, fmt.Sprintf("document processing aborted: %v", recovered), ErrStageCrashed)
}

// ErrorKind names the taxonomy bucket of err, or "" when it has none.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedFormat):
		return CodeUnsupportedFormat
	case errors.Is(err, ErrCorruptInput):
		return CodeCorruptInput
	case errors.Is(err, ErrRecognitionFailure):
		return CodeRecognitionFailure
	case errors.Is(err, ErrRedactionIncomplete):
		return CodeRedactionIncomplete
	case errors.Is(err, ErrExtractionService):
		return CodeExtractionService
	case errors.Is(err, ErrMalformedModelOutput):
		return CodeMalformedModelOutput
	case errors.Is(err, ErrUnreconciledSpans):
		return CodeUnreconciledSpans
	case errors.Is(err, ErrStageCrashed):
		return CodeStageCrashed
	}
	return ""
}

// Warning renders err as a report warning line prefixed with its kind.
func Warning(err error) string {
	if err == nil {
		return ""
	}
	if kind := ErrorKind(err); kind != "" {
		var app *AppError
		if errors.As(err, &app) {
			return kind + ": " + app.Message
		}
		return kind + ": " + err.Error()
	}
	return err.Error()
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// ToStatus maps a pipeline error onto a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrCorruptInput), errors.Is(err, ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrExtractionService):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
