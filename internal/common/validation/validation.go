package validation

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	MaxDisplayNameLength = 64
	MinAccountIDLength   = 5
	MaxAccountIDLength   = 12
)

// Trading account identifiers are numeric, as issued by the broker.
var accountIDRegex = regexp.MustCompile(`^[0-9]+$`)

// ValidateAccountID checks the syntactic shape of a submitted trading
// account identifier before any external validation call is attempted.
func ValidateAccountID(accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return fmt.Errorf("account id cannot be empty")
	}
	if len(accountID) < MinAccountIDLength {
		return fmt.Errorf("account id must be at least %d digits", MinAccountIDLength)
	}
	if len(accountID) > MaxAccountIDLength {
		return fmt.Errorf("account id cannot exceed %d digits", MaxAccountIDLength)
	}
	if !accountIDRegex.MatchString(accountID) {
		return fmt.Errorf("account id must contain only digits")
	}
	return nil
}

// NormalizeAccountID strips surrounding whitespace from a submitted id.
func NormalizeAccountID(accountID string) string {
	return strings.TrimSpace(accountID)
}

// ValidateDisplayName checks a user-provided display name.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("display name cannot be empty")
	}
	if len(name) > MaxDisplayNameLength {
		return fmt.Errorf("display name cannot exceed %d characters", MaxDisplayNameLength)
	}
	return nil
}
