package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError 业务错误，Code 决定 HTTP 状态码，Origin 保留底层错误
type AppError struct {
	Code    string
	Message string
	Origin  error
}

func (e *AppError) Error() string {
	if e.Origin != nil {
		return e.Message + ": " + e.Origin.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Origin
}

// 错误码
const (
	ErrValidation     = "VALIDATION"
	ErrNotFound       = "NOT_FOUND"
	ErrConflict       = "CONFLICT"
	ErrExpired        = "EXPIRED" // 冲突的一种：投票已截止
	ErrStore          = "STORE"
	ErrStaleAggregate = "STALE_AGGREGATE" // 投票已记录，但聚合分数未能同步刷新
	ErrUnauthorized   = "UNAUTHORIZED"
	ErrForbidden      = "FORBIDDEN"
)

func NewAppError(code string, message string, origin error) *AppError {
	return &AppError{Code: code, Message: message, Origin: origin}
}

func NewValidationError(format string, args ...any) *AppError {
	return &AppError{Code: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(entity string, id uint) *AppError {
	return &AppError{Code: ErrNotFound, Message: fmt.Sprintf("%s not found: %d", entity, id)}
}

func NewConflictError(format string, args ...any) *AppError {
	return &AppError{Code: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func NewExpiredError(pollID uint) *AppError {
	return &AppError{Code: ErrExpired, Message: fmt.Sprintf("poll %d has expired", pollID)}
}

func NewForbiddenError(reason string) *AppError {
	return &AppError{Code: ErrForbidden, Message: "Forbidden: " + reason}
}

// NewStoreError 包装持久层错误；已经是 AppError 的原样返回
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Code: ErrStore, Message: op, Origin: err}
}

func NewStaleAggregateError(message string, origin error) *AppError {
	return &AppError{Code: ErrStaleAggregate, Message: message, Origin: origin}
}

// IsErrorCode 判断错误链中是否有指定 code 的 AppError
func IsErrorCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ErrorCode 返回错误码，非 AppError 视为存储错误
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrStore
}

// AppErrorToHTTPStatus converts an AppError code to an HTTP status code.
func AppErrorToHTTPStatus(code string) int {
	switch code {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict, ErrExpired:
		return http.StatusConflict
	case ErrStaleAggregate:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}
