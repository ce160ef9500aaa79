package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed or incomplete submit input. Rejected
	// synchronously; never recorded in the store.
	ErrValidation = errors.New("validation error")
	// ErrStorage marks media that could not be saved or read back.
	ErrStorage = errors.New("storage error")
	// ErrAnalysis marks a failed analyzer run, transient or permanent.
	ErrAnalysis = errors.New("analysis error")
	// ErrNotify marks a failed result delivery. Never reverts a completed
	// submission.
	ErrNotify = errors.New("notify error")
	// ErrNotFound marks lookups for unknown submission identifiers.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a guarded transition that lost a race; the current
	// status was outside the declared from-set.
	ErrConflict = errors.New("status conflict")
	// ErrTransient marks failures expected to succeed on retry.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether an analysis failure should count against the
// retry ceiling rather than failing the submission outright. Validation
// failures are permanent; everything else is assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrValidation)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
