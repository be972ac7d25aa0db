package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayer is returned when the payer is not one of the two parties.
	ErrInvalidPayer = errors.New("invalid payer")
	// ErrInvalidWallet is returned when the wallet is not configured.
	ErrInvalidWallet = errors.New("invalid wallet")
	// ErrInvalidAmount is returned for empty, negative or over-precise amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidTimestamp is returned when an imported datetime cannot be parsed.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrMalformedRecord is returned when a single import record cannot be decoded.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrUnknownIdentity means a directory lookup missed on a party name.
	ErrUnknownIdentity = errors.New("unknown identity")
	// ErrUnknownWallet means a directory lookup missed on a wallet name.
	ErrUnknownWallet = errors.New("unknown wallet")

	// ErrStorage marks failures of the persistence gateway.
	ErrStorage = errors.New("storage failure")
	// ErrMalformedInput means a bulk payload could not be parsed at all.
	ErrMalformedInput = errors.New("malformed input")
)

// ValidationError reports which field of a payment was rejected.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StorageError wraps a gateway failure with the operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStorage, e.Err)
}

// Unwrap exposes both ErrStorage and the underlying cause to errors.Is.
func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// IsValidation reports whether err is a field-level rejection the user can fix.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
