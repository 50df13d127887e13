package rewards

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("rewards: not found")
	ErrAlreadyExists = errors.New("rewards: already exists")
	ErrInvalidInput  = errors.New("rewards: invalid input")
	ErrForbidden     = errors.New("rewards: forbidden")

	// Account errors
	ErrAccountNotFound   = errors.New("rewards: account not found")
	ErrDuplicateDocument = errors.New("rewards: account document already registered")
	ErrInvalidRole       = errors.New("rewards: account has the wrong role")
	ErrAccountInUse      = errors.New("rewards: account is referenced by links or ledger entries")

	// Invoice errors
	ErrInvoiceNotFound   = errors.New("rewards: invoice not found")
	ErrInvalidAccessKey  = errors.New("rewards: invalid access key format")
	ErrDuplicateInvoice  = errors.New("rewards: access key already submitted")
	ErrIssuerNotAllowed  = errors.New("rewards: receipt issuer is not allowed")
	ErrInvoiceNotStandby = errors.New("rewards: invoice is not in standby")

	// Link errors
	ErrLinkNotFound         = errors.New("rewards: link not found")
	ErrDuplicateLink        = errors.New("rewards: link already exists for this seller and store")
	ErrInvalidLinkState     = errors.New("rewards: link is not in a state that allows this operation")
	ErrPercentageOutOfRange = errors.New("rewards: percentage must be between 0 and 100")
	ErrSellerAlreadyLinked  = errors.New("rewards: seller already has an approved link")
	ErrLinkModified         = errors.New("rewards: link was modified concurrently")

	// Issuer errors
	ErrIssuerNotFound     = errors.New("rewards: issuer not found")
	ErrDuplicateIssuer    = errors.New("rewards: issuer already registered")
	ErrInvalidIssuerCode  = errors.New("rewards: issuer code must have 14 digits")
	ErrIssuerCheckFailure = errors.New("rewards: issuer allow-list lookup failed")

	// Store errors
	ErrStorage         = errors.New("rewards: storage failure")
	ErrStoreClosed     = errors.New("rewards: store is closed")
	ErrMigrationFailed = errors.New("rewards: migration failed")
	ErrLockUnavailable = errors.New("rewards: lock unavailable")
)

// Kind classifies an error into the class the calling layer renders.
type Kind string

const (
	KindUnknown    Kind = ""
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindDependency Kind = "dependency"
)

var kinds = []struct {
	kind Kind
	errs []error
}{
	{KindValidation, []error{ErrInvalidInput, ErrInvalidAccessKey, ErrPercentageOutOfRange, ErrInvalidIssuerCode, ErrInvalidRole}},
	{KindConflict, []error{
		ErrAlreadyExists, ErrDuplicateDocument, ErrDuplicateInvoice, ErrDuplicateLink,
		ErrDuplicateIssuer, ErrInvalidLinkState, ErrInvoiceNotStandby, ErrSellerAlreadyLinked,
		ErrLinkModified, ErrAccountInUse,
	}},
	{KindNotFound, []error{ErrNotFound, ErrAccountNotFound, ErrInvoiceNotFound, ErrLinkNotFound, ErrIssuerNotFound}},
	{KindForbidden, []error{ErrForbidden, ErrIssuerNotAllowed}},
	{KindDependency, []error{ErrStorage, ErrStoreClosed, ErrMigrationFailed, ErrLockUnavailable, ErrIssuerCheckFailure}},
}

// ErrorKind returns the class of err, or KindUnknown when err is nil or
// does not wrap any rewards sentinel.
func ErrorKind(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	for _, k := range kinds {
		for _, target := range k.errs {
			if errors.Is(err, target) {
				return k.kind
			}
		}
	}
	return KindUnknown
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rewards: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap returns the sentinel the validation failure corresponds to.
func (e *ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrInvalidInput
	}
	return e.Err
}

func invalid(field, message string, sentinel error) error {
	return &ValidationError{Field: field, Message: message, Err: sentinel}
}

// StorageError wraps a backend failure so callers can tell it apart from
// domain errors. Domain sentinels returned by a store pass through unchanged.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if ErrorKind(err) != KindUnknown {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// IsValidation returns true if the error is caused by malformed input.
func IsValidation(err error) bool { return ErrorKind(err) == KindValidation }

// IsConflict returns true if the error reports a duplicate or a wrong-state transition.
func IsConflict(err error) bool { return ErrorKind(err) == KindConflict }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool { return ErrorKind(err) == KindNotFound }

// IsForbidden returns true if the caller may not perform the operation.
func IsForbidden(err error) bool { return ErrorKind(err) == KindForbidden }

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool { return ErrorKind(err) == KindDependency }
