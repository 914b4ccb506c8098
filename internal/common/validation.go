package common

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator provides validation utilities
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// Add records a failure computed outside a rule (e.g. cross-field checks).
func (v *Validator) Add(fieldName string, value interface{}, message string) *Validator {
	v.errors = append(v.errors, ValidationError{Field: fieldName, Value: value, Message: message})
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error returns a combined error wrapping ErrValidation, or nil.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, v.ErrorMessage())
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Required - Common validation rules
func Required(fieldName string, value interface{}) *ValidationError {
	if value == nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	}
	return nil
}

// NonNegative accepts decimals and ints that are >= 0.
func NonNegative(fieldName string, value interface{}) *ValidationError {
	switch v := value.(type) {
	case decimal.Decimal:
		if v.IsNegative() {
			return &ValidationError{Field: fieldName, Value: v.String(), Message: "must not be negative"}
		}
	case int:
		if v < 0 {
			return &ValidationError{Field: fieldName, Value: v, Message: "must not be negative"}
		}
	case float64:
		if v < 0 {
			return &ValidationError{Field: fieldName, Value: v, Message: "must not be negative"}
		}
	default:
		return &ValidationError{Field: fieldName, Value: value, Message: "must be numeric"}
	}
	return nil
}

// ValidateAndReturnError validates and returns the combined error if validation fails
func ValidateAndReturnError(validator *Validator) error {
	if validator.HasErrors() {
		return NewAppError("VALIDATION_ERROR", validator.ErrorMessage(), ErrValidation)
	}
	return nil
}
