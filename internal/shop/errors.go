package shop

import "errors"

var (
	// ErrCartEmpty is returned when checkout starts (or confirms) with no cart lines.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrInsufficientFunds is returned when the stars balance does not cover the order total.
	ErrInsufficientFunds = errors.New("insufficient stars")
	// ErrCheckoutInProgress is returned when checkout is triggered while a conversation is active.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	// ErrNoCheckout is returned when a checkout step arrives outside of an active conversation.
	ErrNoCheckout = errors.New("no active checkout")
	// ErrAwaitingConfirmation is returned for free text while the order waits for confirm/cancel.
	ErrAwaitingConfirmation = errors.New("checkout awaits confirmation")
	// ErrEmptyInput is returned when a recipient name or address is blank.
	ErrEmptyInput = errors.New("empty input")
	// ErrUnknownProduct is returned when a product key is not in the catalog.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrStorage wraps every failure of the underlying storage.
	ErrStorage = errors.New("storage failure")
)

// StorageError wraps err so that errors.Is(err, ErrStorage) holds while the cause stays reachable.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storageError{op: op, err: err}
}

type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string { return "storage: " + e.op + ": " + e.err.Error() }

func (e *storageError) Unwrap() []error { return []error{ErrStorage, e.err} }

// Code is picked up by the handler summary logger as err_code.
func (e *storageError) Code() string { return "storage_" + e.op }
