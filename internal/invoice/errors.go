package invoice

import (
	"errors"
	"fmt"

	"pos-backend/internal/models"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindProductNotFound   Kind = "product_not_found"
	KindProductInactive   Kind = "product_inactive"
	KindInsufficientStock Kind = "insufficient_stock"
	KindInvoiceNotFound   Kind = "invoice_not_found"
	KindForbidden         Kind = "forbidden"
	KindPersistence       Kind = "persistence"
)

// Error is the structured failure every Service operation returns.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so callers can compare against
// the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrProductNotFound   = &Error{Kind: KindProductNotFound}
	ErrProductInactive   = &Error{Kind: KindProductInactive}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrInvoiceNotFound   = &Error{Kind: KindInvoiceNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrPersistence       = &Error{Kind: KindPersistence}
)

// Returned by LedgerTx implementations.
var (
	ErrDuplicateNumber = errors.New("invoice number already exists")
	ErrStockShortfall  = errors.New("stock below requested quantity")
)

// KindOf reports the kind of err, or KindPersistence for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func insufficientStock(p models.Product) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("Insufficient stock for %s. Available: %d", p.Name, p.StockQuantity),
	}
}

func persistenceError(err error) *Error {
	return &Error{Kind: KindPersistence, Message: "Server error", Err: err}
}

// classify keeps typed errors and turns everything else into a persistence failure.
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return persistenceError(err)
}
