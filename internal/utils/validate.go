package utils

import (
	"regexp"
	"strings"
)

var (
	nameRe   = regexp.MustCompile(`^[A-Za-z ]+$`)
	mobileRe = regexp.MustCompile(`^[6-9][0-9]{9}$`)
)

// ValidationError is a field-scoped credit-check validation failure.
// Validation fails fast: only the first failing field is reported.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateCreditCheck checks a credit-check request locally before any
// network call. Order matters: name, then mobile, then consent.
func ValidateCreditCheck(firstName, mobileNumber string, consent bool) *ValidationError {
	name := strings.TrimSpace(firstName)
	if name == "" || !nameRe.MatchString(name) {
		return &ValidationError{Field: "first_name", Message: "name must contain letters and spaces only"}
	}

	if !mobileRe.MatchString(mobileNumber) {
		return &ValidationError{Field: "mobile_number", Message: "enter a valid 10-digit mobile number"}
	}

	if !consent {
		return &ValidationError{Field: "consent", Message: "consent is required to fetch your credit report"}
	}

	return nil
}
