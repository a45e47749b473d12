package errors

import (
	"errors"
	"fmt"
)

type Status string

// The ledger could not be reached, or a read against it failed in transport
const ChainUnavailable Status = "ChainUnavailable"

// An address string could not be decoded, or belongs to another network
const InvalidAddressFormat Status = "InvalidAddressFormat"

// Configuration of a known envelope is missing on the ledger
const EnvelopeNotFound Status = "EnvelopeNotFound"

// A ledger value expected to always be present is missing
const MetricNotFound Status = "MetricNotFound"

// Too many requests from one client
const RateLimited Status = "RateLimited"

// No outcome for this error known
const UnknownError Status = "UnknownError"

type Error struct {
	Status  Status
	Message string
	cause   error
}

var _ error = &Error{}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func Errorf(status Status, format string, args ...interface{}) error {
	return &Error{
		Status:  status,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap tags err with status, keeping err reachable through errors.Unwrap.
// An err that already carries a status is returned unchanged.
func Wrap(status Status, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{
		Status:  status,
		Message: fmt.Sprintf(format, args...) + ": " + err.Error(),
		cause:   err,
	}
}

// Used when the ledger transport fails or the snapshot cannot be pinned.
func ChainUnavailablef(format string, args ...interface{}) error {
	return Errorf(ChainUnavailable, format, args...)
}

// Used when an address is rejected before any ledger lookup.
func InvalidAddressFormatf(format string, args ...interface{}) error {
	return Errorf(InvalidAddressFormat, format, args...)
}

func EnvelopeNotFoundf(format string, args ...interface{}) error {
	return Errorf(EnvelopeNotFound, format, args...)
}

func MetricNotFoundf(format string, args ...interface{}) error {
	return Errorf(MetricNotFound, format, args...)
}

// StatusOf returns the status carried by err, or UnknownError.
func StatusOf(err error) Status {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return UnknownError
}

// Is reports whether err carries the given status.
func Is(err error, status Status) bool {
	return err != nil && StatusOf(err) == status
}

// As is errors.As, re-exported since this package shadows the standard one.
func As(err error, target any) bool {
	return errors.As(err, target)
}
