// Package domain contains custom error types for the application.
package domain

import (
	"errors"
	"fmt"
)

// Base errors
var (
	ErrRegionNotFound      = errors.New("region not found")
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrNetworkError        = errors.New("network error")
	ErrParseError          = errors.New("parse error")
	ErrNoSession           = errors.New("no subscription session")
)

// ProviderFetchError represents a failure fetching a provider's capability
// data. These are non-fatal: callers degrade to an empty capability set and
// log the distinction.
type ProviderFetchError struct {
	Provider  string
	Region    string
	Operation string
	Err       error
}

func (e *ProviderFetchError) Error() string {
	return fmt.Sprintf("provider fetch error [provider=%s, region=%s, operation=%s]: %v",
		e.Provider, e.Region, e.Operation, e.Err)
}

func (e *ProviderFetchError) Unwrap() error {
	return e.Err
}

// NewProviderFetchError creates a new ProviderFetchError
func NewProviderFetchError(provider, region, operation string, err error) *ProviderFetchError {
	return &ProviderFetchError{
		Provider:  provider,
		Region:    region,
		Operation: operation,
		Err:       err,
	}
}

// QuotaFetchError represents a failure fetching quota usage for a resource
// type. Invalid responses are dropped rather than aborting the batch.
type QuotaFetchError struct {
	ResourceType string
	Region       string
	Err          error
}

func (e *QuotaFetchError) Error() string {
	return fmt.Sprintf("quota fetch error [type=%s, region=%s]: %v", e.ResourceType, e.Region, e.Err)
}

func (e *QuotaFetchError) Unwrap() error {
	return e.Err
}

// NewQuotaFetchError creates a new QuotaFetchError
func NewQuotaFetchError(resourceType, region string, err error) *QuotaFetchError {
	return &QuotaFetchError{
		ResourceType: resourceType,
		Region:       region,
		Err:          err,
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [field=%s]: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
