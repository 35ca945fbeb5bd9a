// Package services runs whole analysis requests over many metrics on top of the pure
// analytics packages.
package services

import (
	"errors"

	"github.com/soltixdb/trendcore/internal/analytics"
)

// Service error codes
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidSeries   = "INVALID_SERIES"
	CodeAnalysisFailed  = "ANALYSIS_FAILED"
	CodeRequestCanceled = "REQUEST_CANCELED"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// wrapError converts an analytics error into a ServiceError under code. Validation
// details are carried over and the validation code is kept as "reason".
func wrapError(code string, err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}

	var ve *analytics.ValidationError
	if errors.As(err, &ve) {
		details := map[string]interface{}{"reason": ve.Code}
		for k, v := range ve.Details {
			details[k] = v
		}
		return NewServiceErrorWithDetails(code, ve.Message, details)
	}
	return NewServiceError(code, err.Error())
}
