package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	CodeIncompleteResponse  = "INCOMPLETE_RESPONSE"
	CodeOutOfDomain         = "OUT_OF_DOMAIN"
	CodeNoMatchingPartition = "NO_MATCHING_PARTITION"
	CodeStructuralError     = "STRUCTURAL_DEFINITION_ERROR"
	CodeInvalidAnswer       = "INVALID_ANSWER"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeValidation          = "VALIDATION_ERROR"
	CodeDatabaseError       = "DATABASE_ERROR"
	CodeRateLimit           = "RATE_LIMIT_EXCEEDED"
	CodeInternalServer      = "INTERNAL_SERVER_ERROR"
)

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message string, details interface{}, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// IncompleteResponseError reports required items of the current stage that have no answer.
type IncompleteResponseError struct {
	AssessmentID string   `json:"assessment_id"`
	Stage        string   `json:"stage"`
	Missing      []string `json:"missing"`
}

func (e *IncompleteResponseError) Error() string {
	return fmt.Sprintf("incomplete response for %s stage %s: missing %s",
		e.AssessmentID, e.Stage, strings.Join(e.Missing, ", "))
}

// Code returns the stable error code.
func (e *IncompleteResponseError) Code() string { return CodeIncompleteResponse }

// OutOfDomainError reports a value that falls outside every band of a table.
type OutOfDomainError struct {
	Table  string  `json:"table"`
	Source string  `json:"source"`
	Value  float64 `json:"value"`
}

func (e *OutOfDomainError) Error() string {
	return fmt.Sprintf("not applicable for this input: %s = %g is outside every band of table %s",
		e.Source, e.Value, e.Table)
}

// Code returns the stable error code.
func (e *OutOfDomainError) Code() string { return CodeOutOfDomain }

// NoMatchingPartitionError reports categorical keys that select no partition of a table.
type NoMatchingPartitionError struct {
	Table string            `json:"table"`
	Keys  map[string]string `json:"keys"`
}

func (e *NoMatchingPartitionError) Error() string {
	keys := make([]string, 0, len(e.Keys))
	for k := range e.Keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + e.Keys[k]
	}
	return fmt.Sprintf("no partition of table %s matches {%s}", e.Table, strings.Join(pairs, ", "))
}

// Code returns the stable error code.
func (e *NoMatchingPartitionError) Code() string { return CodeNoMatchingPartition }

// StructuralDefinitionError lists the invariant violations found in a definition at load time.
type StructuralDefinitionError struct {
	Definition string   `json:"definition"`
	Problems   []string `json:"problems"`
}

func (e *StructuralDefinitionError) Error() string {
	return fmt.Sprintf("definition %s is invalid: %s", e.Definition, strings.Join(e.Problems, "; "))
}

// Code returns the stable error code.
func (e *StructuralDefinitionError) Code() string { return CodeStructuralError }

// InvalidAnswerError reports an answer that does not fit its item.
type InvalidAnswerError struct {
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// NewInvalidAnswerError creates a new InvalidAnswerError
func NewInvalidAnswerError(item, reason string) *InvalidAnswerError {
	return &InvalidAnswerError{Item: item, Reason: reason}
}

func (e *InvalidAnswerError) Error() string {
	return fmt.Sprintf("invalid answer for item %s: %s", e.Item, e.Reason)
}

// Code returns the stable error code.
func (e *InvalidAnswerError) Code() string { return CodeInvalidAnswer }

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ErrorCode maps an error to its stable code.
func ErrorCode(err error) string {
	var coded interface{ Code() string }
	var validation *ValidationError
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &coded):
		return coded.Code()
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.As(err, &validation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternalServer
	}
}

// IsInputError reports whether err is an expected outcome caused by the supplied answers
// rather than a fault of the engine or its definitions.
func IsInputError(err error) bool {
	switch ErrorCode(err) {
	case CodeIncompleteResponse, CodeOutOfDomain, CodeNoMatchingPartition, CodeInvalidAnswer, CodeValidation:
		return true
	default:
		return false
	}
}

// ErrorDetails returns the typed input error inside err, for use as the details of an
// APIError, or nil.
func ErrorDetails(err error) interface{} {
	var incomplete *IncompleteResponseError
	var outOfDomain *OutOfDomainError
	var partition *NoMatchingPartitionError
	var invalid *InvalidAnswerError
	var validation *ValidationError
	switch {
	case errors.As(err, &incomplete):
		return incomplete
	case errors.As(err, &outOfDomain):
		return outOfDomain
	case errors.As(err, &partition):
		return partition
	case errors.As(err, &invalid):
		return invalid
	case errors.As(err, &validation):
		return validation
	default:
		return nil
	}
}
