package model

import (
	"fmt"
	"regexp"
)

// Account names double as directory names in the snapshot store, so the
// charset is restricted to filesystem-safe characters.
var accountNameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateAccountName checks that name is usable as an account identifier.
func ValidateAccountName(name string) error {
	if name == "" || !accountNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidAccountName, name)
	}
	return nil
}

var uidRe = regexp.MustCompile(`^[0-9]+$`)

// ValidateUID checks that uid is the external service's numeric identifier.
func ValidateUID(uid string) error {
	if !uidRe.MatchString(uid) {
		return fmt.Errorf("%w: %q", ErrInvalidUID, uid)
	}
	return nil
}
