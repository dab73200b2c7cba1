// Package hostname contains pure functions for custom-domain validation.
// This is part of the Functional Core - all functions are pure with no I/O.
package hostname

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/buildcart/buildcart/internal/core/domain"
)

// =============================================================================
// Validation
// =============================================================================

var hostnameRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

// Normalize lowercases and trims a hostname for comparison and storage.
func Normalize(hostname string) string {
	return strings.TrimSpace(strings.ToLower(hostname))
}

// Validate checks a hostname's format for use as a custom domain.
// Malformed input is rejected before any persistence attempt.
func Validate(hostname string) error {
	hostname = Normalize(hostname)
	if hostname == "" {
		return fmt.Errorf("%w: hostname is empty", domain.ErrValidation)
	}
	if len(hostname) > 253 {
		return fmt.Errorf("%w: hostname must be under 253 characters", domain.ErrValidation)
	}
	if !hostnameRegex.MatchString(hostname) {
		return fmt.Errorf("%w: invalid hostname format %q", domain.ErrValidation, hostname)
	}
	return nil
}
