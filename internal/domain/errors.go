package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidationFailed        = errors.New("validation failed")
	ErrEntityNotFound          = errors.New("entity not found")
	ErrReferenceNotFound       = errors.New("reference not found")
	ErrIllegalStatusTransition = errors.New("illegal status transition")
	ErrStoreUnavailable        = errors.New("store unavailable")
	ErrConflict                = errors.New("conflict")
)

// Field error codes.
const (
	CodeRequiredField      = "REQUIRED_FIELD"
	CodeInvalidDate        = "INVALID_DATE"
	CodeInvalidDateRange   = "INVALID_DATE_RANGE"
	CodeInvalidTransition  = "INVALID_STATUS_TRANSITION"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeInvalidReference   = "INVALID_REFERENCE"
	CodeDuplicateReference = "DUPLICATE_REFERENCE"
	CodeInvalidTag         = "INVALID_TAG"
	CodeMaxLength          = "MAX_LENGTH"
	CodeInvalidCategory    = "INVALID_CATEGORY"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationError carries every field-level failure of a rejected mutation.
type ValidationError struct {
	Entity   string       `json:"entity"`
	Errors   []FieldError `json:"errors"`
	Warnings []string     `json:"warnings,omitempty"`
}

func (e ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return fmt.Sprintf("%s validation failed: %s", e.Entity, strings.Join(parts, "; "))
}

func (e ValidationError) Is(target error) bool {
	switch target {
	case ErrValidationFailed:
		return true
	case ErrIllegalStatusTransition:
		return e.HasCode(CodeInvalidTransition)
	case ErrReferenceNotFound:
		return e.HasCode(CodeInvalidReference)
	}
	return false
}

func (e ValidationError) HasCode(code string) bool {
	for _, fe := range e.Errors {
		if fe.Code == code {
			return true
		}
	}
	return false
}

// NotFoundError reports a missing entity by kind and id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e NotFoundError) Is(target error) bool { return target == ErrEntityNotFound }

// ConflictError reports an id that is already taken by a real entity.
type ConflictError struct {
	Kind string
	ID   string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Kind, e.ID)
}

func (e ConflictError) Is(target error) bool { return target == ErrConflict }

// StoreError wraps an adapter failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e StoreError) Unwrap() error { return e.Err }

func (e StoreError) Is(target error) bool { return target == ErrStoreUnavailable }
