package model

import (
	"errors"
	"fmt"
)

// ErrorKind классифицирует ошибки, возвращаемые вызывающему.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindValidation
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error описывает ошибку с классом и сообщением, безопасным для показа клиенту.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

// Is сравнивает только класс ошибки, поэтому errors.Is(err, ErrForbidden)
// срабатывает для любого сообщения.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrConflict        = &Error{Kind: KindConflict}
)

func newError(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Unauthenticated создаёт ошибку отсутствующих или недействительных учётных данных.
func Unauthenticated(format string, args ...any) error {
	return newError(KindUnauthenticated, format, args...)
}

// Forbidden создаёт ошибку недостаточных прав.
func Forbidden(format string, args ...any) error {
	return newError(KindForbidden, format, args...)
}

// NotFound создаёт ошибку отсутствующего ресурса.
func NotFound(format string, args ...any) error {
	return newError(KindNotFound, format, args...)
}

// Validation создаёт ошибку некорректных входных данных.
func Validation(format string, args ...any) error {
	return newError(KindValidation, format, args...)
}

// Conflict создаёт ошибку, недопустимую при текущем состоянии ресурса.
func Conflict(format string, args ...any) error {
	return newError(KindConflict, format, args...)
}

// KindOf возвращает класс ошибки; всё, что не является *Error, считается внутренней ошибкой.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
