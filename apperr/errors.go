// Package apperr holds the error taxonomy shared by stage workers, providers,
// the render engine and the queue layer.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrEmptyInput          = errors.New("empty input")
	ErrTranscode           = errors.New("transcode failure")
	ErrUpload              = errors.New("upload failure")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrLeaseHeld           = errors.New("lease held")
	ErrValidation          = errors.New("validation error")
)

// Wrap builds "marker: stage: operation: message: cause" while keeping both the
// marker and the cause reachable through errors.Is.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		if err != nil {
			return fmt.Errorf("%s: %w", detail, err)
		}
		return errors.New(detail)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Permanent reports whether retrying the same job cannot succeed.
func Permanent(err error) bool {
	if err == nil {
		return false
	}
	for _, marker := range []error{ErrNotFound, ErrValidation, ErrInvalidTransition, ErrEmptyInput, ErrProviderUnavailable} {
		if errors.Is(err, marker) {
			return true
		}
	}
	return false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{stage, operation, message} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
