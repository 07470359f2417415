package booking

import "errors"

// ErrSlotUnavailable means the chosen time was no longer free at confirmation
// time, either at the availability re-check or at the store's overlap
// constraint. The caller should offer a fresh time selection.
var ErrSlotUnavailable = errors.New("slot no longer available")

// ValidationError rejects malformed input before the store is touched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(reason string) error {
	return &ValidationError{Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CancelOutcome is the closed result set of a cancellation attempt.
type CancelOutcome int

const (
	Cancelled CancelOutcome = iota + 1
	NotFound
	Forbidden
)

func (o CancelOutcome) String() string {
	switch o {
	case Cancelled:
		return "cancelled"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}
