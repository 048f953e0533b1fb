package flow

import (
	"regexp"
	"strings"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
	"github.com/smallbiznis/petfeeder/internal/auth/password"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return authdomain.NewValidationError("email", authdomain.ErrMissingField, "Please enter your email address.")
	}
	if !emailPattern.MatchString(email) {
		return authdomain.NewValidationError("email", authdomain.ErrInvalidEmail, "Please enter a valid email address.")
	}
	return nil
}

// ValidatePassword applies the strength policy used for new passwords.
func ValidatePassword(pw string) error {
	if pw == "" {
		return authdomain.NewValidationError("password", authdomain.ErrMissingField, "Please enter a password.")
	}
	longEnough, mixed := password.Check(pw)
	if !longEnough {
		return authdomain.NewValidationError("password", authdomain.ErrWeakPassword, "Password must be at least 8 characters long.")
	}
	if !mixed {
		return authdomain.NewValidationError("password", authdomain.ErrWeakPassword,
			"Password must contain at least 3 of: lowercase letters, uppercase letters, numbers and special characters.")
	}
	return nil
}

func validateConfirmation(pw, confirm string) error {
	if pw != confirm {
		return authdomain.NewValidationError("confirm_password", authdomain.ErrPasswordMismatch, "Passwords do not match.")
	}
	return nil
}

func (in SignInInput) Validate() error {
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if in.Password == "" {
		return authdomain.NewValidationError("password", authdomain.ErrMissingField, "Please enter your password.")
	}
	return nil
}

func (in SignUpInput) Validate() error {
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return err
	}
	if err := validateConfirmation(in.Password, in.ConfirmPassword); err != nil {
		return err
	}
	if !in.AcceptTerms {
		return authdomain.NewValidationError("terms", authdomain.ErrTermsNotAccepted, "Please accept the terms of service.")
	}
	return nil
}

func (in ResetRequestInput) Validate() error {
	return ValidateEmail(in.Email)
}

func (in ResetConfirmInput) Validate() error {
	if err := ValidatePassword(in.Password); err != nil {
		return err
	}
	return validateConfirmation(in.Password, in.ConfirmPassword)
}
