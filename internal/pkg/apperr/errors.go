// Package apperr 定义了履约核心对调用方暴露的错误分类。
package apperr

import (
	"errors"
	"fmt"
)

// Kind 是稳定的错误类别，调用方据此决定如何展示或是否重试。
type Kind string

const (
	KindValidation           Kind = "VALIDATION"
	KindNotFound             Kind = "NOT_FOUND"
	KindConflict             Kind = "CONFLICT"
	KindInsufficientResource Kind = "INSUFFICIENT_RESOURCE"
	KindInvalidState         Kind = "INVALID_STATE"
	KindLockTimeout          Kind = "LOCK_TIMEOUT"
	KindExternalNotify       Kind = "EXTERNAL_NOTIFY_FAILURE"
	KindInternal             Kind = "INTERNAL"
)

// 只带类别的哨兵错误，errors.Is(err, apperr.ErrConflict) 可匹配任意 Conflict 错误。
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrInsufficientResource = &Error{Kind: KindInsufficientResource}
	ErrInvalidState         = &Error{Kind: KindInvalidState}
	ErrLockTimeout          = &Error{Kind: KindLockTimeout}
	ErrExternalNotify       = &Error{Kind: KindExternalNotify}
)

// Error 携带类别、业务码和可读信息。
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
		if e.Code != "" {
			msg = e.Code
		}
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is 按类别匹配；目标带有 Code 时还要求业务码一致。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// New 创建一个不带消息的业务码哨兵，通常配合 Newf 使用。
func New(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

// Newf 创建一个带格式化消息的错误。
func Newf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 把底层错误归入某个类别。
func Wrap(kind Kind, code string, err error, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Of 基于哨兵生成一个带具体信息的同码错误。
func (e *Error) Of(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// KindOf 返回错误链上第一个 *Error 的类别，未分类的错误视为 Internal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf 返回错误链上第一个 *Error 的业务码。
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Code != "" {
			return e.Code
		}
		return string(e.Kind)
	}
	return string(KindInternal)
}

// Retryable 报告调用方是否可以稍后重试，目前只有锁等待超时属于瞬时失败。
func Retryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
