package client

import (
	"context"
	"errors"

	"github.com/kjstillabower/weather-proxy/internal/store"
	"github.com/kjstillabower/weather-proxy/internal/validation"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as the weatherLookupErrorsTotal label.
const (
	ErrorCategoryTimeout    ErrorCategory = "timeout"
	ErrorCategoryUpstream   ErrorCategory = "upstream"
	ErrorCategoryParse      ErrorCategory = "parse"
	ErrorCategoryStore      ErrorCategory = "store"
	ErrorCategoryValidation ErrorCategory = "validation"
	ErrorCategoryUnknown    ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory. Parse is checked before
// upstream so a malformed body is never reported as a transport problem.
func CategorizeError(err error) ErrorCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorCategoryTimeout
	case errors.Is(err, ErrParse):
		return ErrorCategoryParse
	case errors.Is(err, ErrUpstream):
		return ErrorCategoryUpstream
	case errors.Is(err, store.ErrStore):
		return ErrorCategoryStore
	case validation.IsInvalidCity(err):
		return ErrorCategoryValidation
	default:
		return ErrorCategoryUnknown
	}
}
