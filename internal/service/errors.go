package service

import (
	"errors"

	"github.com/dukerupert/checkout/internal/domain"
)

// Checkout errors callers of this package switch on.
var (
	ErrEmptyCart                 = domain.ErrEmptyCart
	ErrStockUnavailable          = domain.ErrStockUnavailable
	ErrDeliveryDetailsInvalid    = domain.ErrDeliveryDetailsInvalid
	ErrPaymentInstrumentRequired = domain.ErrPaymentInstrumentRequired
	ErrGuestInfoRequired         = domain.ErrGuestInfoRequired
	ErrPaymentFailed             = domain.ErrPaymentFailed
	ErrSessionNotFound           = domain.ErrSessionNotFound
)

// collaboratorError keeps domain errors from collaborators and wraps anything
// else as an internal failure.
func collaboratorError(err error, op, message string) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Internal(err, op, message)
}
