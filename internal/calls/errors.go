package calls

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("calls: call not found")
	ErrForbidden        = errors.New("calls: user is not a participant of this call")
	ErrSelfCall         = errors.New("calls: cannot call yourself")
	ErrReceiverNotFound = errors.New("calls: receiver does not exist")
	ErrAlreadyAnswered  = errors.New("calls: call already answered or ended")
	ErrAlreadyEnded     = errors.New("calls: call already ended")
)

// InsufficientBalanceError rejects call initiation when the caller cannot
// afford one minute at the session rate. It carries both sides of the
// comparison so the API can show the shortfall.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("calls: insufficient balance: required %s, available %s", e.Required, e.Available)
}
