package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error codes carried by AppError.
const (
	CodeUnreadableDocument = "UNREADABLE_DOCUMENT"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeStorageConflict    = "STORAGE_CONFLICT"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeConfig             = "CONFIG_ERROR"
	CodeInternal           = "INTERNAL"
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

// Is lets errors.Is match an AppError against the sentinel of its code.
func (e *AppError) Is(target error) bool {
	s, ok := sentinels[e.Code]
	return ok && s == target
}

// GRPCStatus maps the error onto a gRPC status so transports can surface it unchanged.
func (e *AppError) GRPCStatus() *status.Status {
	c, ok := grpcCodes[e.Code]
	if !ok {
		c = codes.Unknown
	}
	return status.New(c, e.Error())
}

// Common application errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal error")
	ErrUnreadableDocument = errors.New("unreadable document")
	ErrStorageConflict    = errors.New("storage conflict")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

var sentinels = map[string]error{
	CodeUnreadableDocument: ErrUnreadableDocument,
	CodeNotFound:           ErrNotFound,
	CodeInvalidInput:       ErrInvalidInput,
	CodeStorageConflict:    ErrStorageConflict,
	CodeStorageUnavailable: ErrStorageUnavailable,
	CodeConfig:             ErrInvalidInput,
	CodeInternal:           ErrInternal,
}

var grpcCodes = map[string]codes.Code{
	CodeUnreadableDocument: codes.InvalidArgument,
	CodeNotFound:           codes.NotFound,
	CodeInvalidInput:       codes.InvalidArgument,
	CodeStorageConflict:    codes.Aborted,
	CodeStorageUnavailable: codes.Unavailable,
	CodeConfig:             codes.FailedPrecondition,
	CodeInternal:           codes.Internal,
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NotFound(message string) *AppError {
	return NewAppError(CodeNotFound, message, nil)
}

func UnreadableDocument(message string, cause error) *AppError {
	return NewAppError(CodeUnreadableDocument, message, cause)
}

func InvalidInput(message string, cause error) *AppError {
	return NewAppError(CodeInvalidInput, message, cause)
}

func StorageConflict(message string, cause error) *AppError {
	return NewAppError(CodeStorageConflict, message, cause)
}

func StorageUnavailable(message string, cause error) *AppError {
	return NewAppError(CodeStorageUnavailable, message, cause)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodeOf returns the AppError code found in err's chain, or "" when there is none.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsRetryable reports whether the caller may retry the failed operation.
// Only the outermost AppError counts, so an exhausted conflict wrapped as
// STORAGE_UNAVAILABLE is final.
func IsRetryable(err error) bool {
	return CodeOf(err) == CodeStorageConflict
}
