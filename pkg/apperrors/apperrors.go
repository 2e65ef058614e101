package apperrors

import "errors"

// Falhas de negócio que o cliente pode tratar e tentar de novo.
// Toda operação de ledger aborta inteira — nunca existe escrita parcial.
var (
	ErrCapacityExceeded    = errors.New("route capacity exceeded")
	ErrOrderUnavailable    = errors.New("order no longer available")
	ErrInsufficientBalance = errors.New("insufficient point balance")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidState        = errors.New("operation not allowed in current state")
	ErrAlreadyAssigned     = errors.New("a driver is already assigned")
	ErrUnauthorized        = errors.New("caller role not allowed")
)

// Kind returns a stable machine-readable identifier for an error,
// suitable for API payloads and the websocket envelope.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrCapacityExceeded):
		return "CAPACITY_EXCEEDED"
	case errors.Is(err, ErrOrderUnavailable):
		return "ORDER_UNAVAILABLE"
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrUserNotFound):
		return "USER_NOT_FOUND"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrAlreadyAssigned):
		return "ALREADY_ASSIGNED"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	}
	return "INTERNAL"
}

func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrOrderUnavailable),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrAlreadyAssigned):
		return 409
	case errors.Is(err, ErrInsufficientBalance):
		return 402
	case errors.Is(err, ErrUserNotFound):
		return 404
	case errors.Is(err, ErrUnauthorized):
		return 403
	}
	return 500
}
