package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

// PasswordMinLength and PasswordMaxLength bound accepted passwords. The max
// exists because bcrypt truncates input past 72 bytes.
const (
	PasswordMinLength = 10
	PasswordMaxLength = 72
)

// ValidatePasswordStrength enforces the password policy. It runs before any
// one-time token is consumed so a rejected password never burns the token.
func ValidatePasswordStrength(password string) error {
	err := validation.Validate(password,
		validation.Required,
		validation.Length(PasswordMinLength, PasswordMaxLength),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "password does not meet the strength policy").
			WithTextCode(TextCodeWeakPassword).
			WithCode(errors.CodeBadRequest)
	}
	return nil
}
