package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind 是一个封闭的错误类别集合。调用方通过 Kind 而不是错误字符串
// 来区分业务结果。
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindOwnershipViolation Kind = "OWNERSHIP_VIOLATION"
	KindStateConflict      Kind = "STATE_CONFLICT"
	KindProductUnavailable Kind = "PRODUCT_UNAVAILABLE"
	KindInsufficientFunds  Kind = "INSUFFICIENT_FUNDS"
	KindAdapterFailure     Kind = "ADAPTER_FAILURE"
	KindPersistenceFailure Kind = "PERSISTENCE_FAILURE"
	KindUnknown            Kind = "UNKNOWN"
)

// Error 携带错误类别和相关实体标识。
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf 解析任意错误的类别，非领域错误归为 KindUnknown。
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsKind 报告 err 是否属于给定类别。
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func ErrOrderNotFound(id uuid.UUID) *Error {
	return &Error{Kind: KindNotFound, msg: fmt.Sprintf("order not found, id=%s", id)}
}

func ErrPositionNotFound(id uuid.UUID) *Error {
	return &Error{Kind: KindNotFound, msg: fmt.Sprintf("order position not found, id=%s", id)}
}

func ErrOrderOwnedByAnotherUser(id uuid.UUID) *Error {
	return &Error{Kind: KindOwnershipViolation, msg: fmt.Sprintf("order created by a different user, id=%s", id)}
}

func ErrStateConflict(id uuid.UUID, current, required Status) *Error {
	return &Error{
		Kind: KindStateConflict,
		msg:  fmt.Sprintf("order %s is %s, operation requires %s", id, current, required),
	}
}

func ErrProductUnavailable(productCode string) *Error {
	return &Error{Kind: KindProductUnavailable, msg: fmt.Sprintf("product not available, code=%s", productCode)}
}

func ErrInsufficientFunds(amount decimal.Decimal) *Error {
	return &Error{Kind: KindInsufficientFunds, msg: fmt.Sprintf("insufficient funds for withdrawal of %s", amount)}
}

func ErrAdapterFailure(operation string, cause error) *Error {
	return &Error{Kind: KindAdapterFailure, msg: fmt.Sprintf("remote call %s failed", operation), cause: cause}
}

func ErrPersistenceFailure(msg string) *Error {
	return &Error{Kind: KindPersistenceFailure, msg: msg}
}
