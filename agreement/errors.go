package agreement

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication = errors.New("agreement: authentication required")
	ErrAuthorization  = errors.New("agreement: not allowed")
	ErrNotFound       = errors.New("agreement: not found")
	// ErrRecipientNotFound means the invitee has no account; they must register first.
	ErrRecipientNotFound = errors.New("agreement: recipient not registered, they must register first")
	ErrDuplicateParty    = errors.New("agreement: user is already a party")
	ErrNotAParty         = errors.New("agreement: user is not a party")
	// ErrAlreadyResponded covers signing after rejecting and rejecting after signing.
	ErrAlreadyResponded = errors.New("agreement: party has already responded")
	ErrInvalidSignature = errors.New("agreement: invalid signature")
	ErrInvalidInput     = errors.New("agreement: invalid input")
	// ErrStore matches every *StoreError through errors.Is.
	ErrStore = errors.New("agreement: store failure")
)

// StoreError wraps an infrastructure failure. The operation did not happen.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("agreement: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
