// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrOrderRejected     = errors.New("order rejected")
	ErrConfigInvalid     = errors.New("invalid configuration")
)

// ValidationError represents malformed input rejected before any mutation.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ArithmeticOverflowError is returned when a decimal step leaves the representable range.
type ArithmeticOverflowError struct {
	Op    string // "+", "-", "*"
	Left  string
	Right string
}

func (e *ArithmeticOverflowError) Error() string {
	return fmt.Sprintf("arithmetic overflow: %s %s %s", e.Left, e.Op, e.Right)
}

// NewArithmeticOverflowError creates a new ArithmeticOverflowError.
func NewArithmeticOverflowError(op, left, right string) *ArithmeticOverflowError {
	return &ArithmeticOverflowError{
		Op:    op,
		Left:  left,
		Right: right,
	}
}

// IllegalTransitionError is returned when a status change is not in the lifecycle table.
type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s -> %s", e.From, e.To)
}

// NewIllegalTransitionError creates a new IllegalTransitionError.
func NewIllegalTransitionError(from, to string) *IllegalTransitionError {
	return &IllegalTransitionError{From: from, To: to}
}

// RuleViolationError represents a risk rule that blocks funding. Level is
// the severity the rule was configured with.
type RuleViolationError struct {
	Rule   string
	Level  string
	Limit  string
	Actual string
}

func (e *RuleViolationError) Error() string {
	return fmt.Sprintf("risk violation [%s]: risk %s exceeds limit %s", e.Rule, e.Actual, e.Limit)
}

// NewRuleViolationError creates a new RuleViolationError.
func NewRuleViolationError(rule, level, limit, actual string) *RuleViolationError {
	return &RuleViolationError{
		Rule:   rule,
		Level:  level,
		Limit:  limit,
		Actual: actual,
	}
}

// InvalidStateError is returned when an operation needs a status the trade is not in.
type InvalidStateError struct {
	Operation string
	Status    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state: %s not allowed while trade is %s", e.Operation, e.Status)
}

// NewInvalidStateError creates a new InvalidStateError.
func NewInvalidStateError(operation, status string) *InvalidStateError {
	return &InvalidStateError{Operation: operation, Status: status}
}

// BrokerError represents an error from the broker API.
type BrokerError struct {
	Code    string
	Message string
	Err     error
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broker error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("broker error [%s]: %s", e.Code, e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(code, message string, err error) *BrokerError {
	return &BrokerError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsDomain reports whether err is a domain rejection rather than an
// infrastructure failure.
func IsDomain(err error) bool {
	var (
		v  *ValidationError
		o  *ArithmeticOverflowError
		it *IllegalTransitionError
		rv *RuleViolationError
		is *InvalidStateError
	)
	return errors.As(err, &v) || errors.As(err, &o) || errors.As(err, &it) ||
		errors.As(err, &rv) || errors.As(err, &is) || errors.Is(err, ErrInsufficientFunds)
}
