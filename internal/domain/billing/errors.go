package billing

import (
	"errors"
	"strings"
)

var (
	ErrNotFound         = errors.New("registro no encontrado")
	ErrInvoiceClosed    = errors.New("la factura está cancelada o anulada y no admite pagos")
	ErrPaymentConfirmed = errors.New("un pago confirmado no se puede modificar, elimínelo y créelo de nuevo")
)

// ValidationError carries every rule violation found in a request.
type ValidationError struct {
	Errors []string
}

func NewValidationError(errs ...string) *ValidationError {
	return &ValidationError{Errors: errs}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
