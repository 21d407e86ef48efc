package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound      = errors.New("resource not found")
	ErrSuiteNotFound = fmt.Errorf("%w: expectation suite", ErrNotFound)
	ErrBatchNotFound = fmt.Errorf("%w: batch", ErrNotFound)

	// Request / configuration errors
	ErrBatchSpec          = errors.New("invalid batch request")
	ErrInvalidConfig      = errors.New("invalid expectation configuration")
	ErrUnknownExpectation = errors.New("unknown expectation type")

	// Data errors
	ErrDataUnavailable = errors.New("data unavailable")
	ErrEstimationData  = errors.New("no usable batches for estimation")

	// Resolution errors
	ErrMetricResolution = errors.New("metric resolution failed")
	ErrNotEstimable     = errors.New("expectation type does not support estimation")
	ErrTimeout          = errors.New("operation timed out")
)

// Error constructors with context
func NewBatchSpecError(reason string) error {
	return fmt.Errorf("%w: %s", ErrBatchSpec, reason)
}

func NewDataUnavailableError(source string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDataUnavailable, source, err)
	}
	return fmt.Errorf("%w: %s", ErrDataUnavailable, source)
}

func NewMetricResolutionError(metric string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMetricResolution, metric, reason)
}

func NewConfigError(expectationType string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, expectationType, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsBatchSpecError(err error) bool {
	return errors.Is(err, ErrBatchSpec)
}

func IsDataError(err error) bool {
	return errors.Is(err, ErrDataUnavailable) ||
		errors.Is(err, ErrEstimationData)
}

func IsResolutionError(err error) bool {
	return errors.Is(err, ErrMetricResolution) ||
		errors.Is(err, ErrTimeout)
}

func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrUnknownExpectation) ||
		errors.Is(err, ErrNotEstimable)
}
