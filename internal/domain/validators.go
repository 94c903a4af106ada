package domain

import (
	"fmt"
	"regexp"
)

var userIDRegex = regexp.MustCompile(`^[A-Za-z0-9_\-:.]{1,128}$`)

// ValidateUserID checks that a user reference is a non-empty opaque token.
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if !userIDRegex.MatchString(userID) {
		return fmt.Errorf("invalid user id format")
	}
	return nil
}

// ValidatePlacement checks that the placement is one the engine knows.
func ValidatePlacement(p Placement) error {
	if p == "" {
		return fmt.Errorf("placement is required")
	}
	if !p.Valid() {
		return fmt.Errorf("unknown placement: %s", p)
	}
	return nil
}

// MaxOverrideAmount caps a caller-supplied reward amount.
const MaxOverrideAmount int64 = 1_000_000

// ValidateOverrideAmount checks a caller-supplied reward amount.
func ValidateOverrideAmount(amount *int64) error {
	if amount == nil {
		return nil
	}
	if *amount <= 0 {
		return fmt.Errorf("override amount must be positive, got %d", *amount)
	}
	if *amount > MaxOverrideAmount {
		return fmt.Errorf("override amount %d exceeds %d", *amount, MaxOverrideAmount)
	}
	return nil
}
