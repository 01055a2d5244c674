// Package forms holds the input models of the auth screens and their
// validation rules. Everything here is pure: values come in from a form post
// and field errors come out, recomputed on every submission.
package forms

import (
	"net/url"

	"github.com/dgellow/authfront/internal/emailutil"
)

// MinPasswordLength is the shortest password the forms accept
const MinPasswordLength = 8

// Field names as they appear in the HTML forms
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldRemember        = "remember"
	FieldNewPassword     = "newPassword"
	FieldConfirmPassword = "confirmPassword"
)

// Validation messages
const (
	MsgInvalidEmail      = "Please enter a valid email address"
	MsgInvalidResetEmail = "Please enter a valid email address."
	MsgPasswordRequired  = "Password is required"
	MsgPasswordTooShort  = "Password must have at least 8 characters"
	MsgFieldRequired     = "This field is required"
	MsgPasswordsMismatch = "Passwords do not match"
)

// Alert messages
const (
	MsgLoginSuccess      = "Login successful!"
	MsgSignUpSuccess     = "Sign up successful! Please check email for confirmation"
	MsgResetEmailSent    = "Password reset email sent! Check your inbox."
	MsgPasswordUpdated   = "Password updated successfully!"
	MsgAlreadyRegistered = "User already registered! Please Log in"

	providerAlreadyRegistered = "User already registered"
)

// Mode selects which of the two credential forms is rendered
type Mode string

const (
	ModeSignIn Mode = "signin"
	ModeSignUp Mode = "signup"
)

// ParseMode maps a query or form value to a Mode. Anything unknown is sign-in.
func ParseMode(s string) Mode {
	if Mode(s) == ModeSignUp {
		return ModeSignUp
	}
	return ModeSignIn
}

// Toggle returns the other mode
func (m Mode) Toggle() Mode {
	if m == ModeSignUp {
		return ModeSignIn
	}
	return ModeSignUp
}

// FieldError is a validation failure attached to one input
type FieldError struct {
	Field   string
	Message string
}

// Errors is the result of validating one submission
type Errors []FieldError

// For returns the message for field, or "" when the field is valid
func (e Errors) For(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// Valid reports whether no field failed
func (e Errors) Valid() bool {
	return len(e) == 0
}

func (e *Errors) add(field, msg string) {
	*e = append(*e, FieldError{Field: field, Message: msg})
}

// Credentials is the input of the sign-in and sign-up forms
type Credentials struct {
	Email    string
	Password string
	Remember bool
}

// ParseCredentials reads credentials from a form post. Values are kept
// verbatim.
func ParseCredentials(form url.Values) Credentials {
	return Credentials{
		Email:    form.Get(FieldEmail),
		Password: form.Get(FieldPassword),
		Remember: isChecked(form.Get(FieldRemember)),
	}
}

func isChecked(v string) bool {
	switch v {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// ValidateSignIn checks a sign-in submission
func ValidateSignIn(c Credentials) Errors {
	var errs Errors
	if !emailutil.IsValid(c.Email) {
		errs.add(FieldEmail, MsgInvalidEmail)
	}
	switch {
	case c.Password == "":
		errs.add(FieldPassword, MsgPasswordRequired)
	case len(c.Password) < MinPasswordLength:
		errs.add(FieldPassword, MsgPasswordTooShort)
	}
	return errs
}

// ValidateSignUp checks a sign-up submission. An empty password gets the
// length message, not a "required" one.
func ValidateSignUp(c Credentials) Errors {
	var errs Errors
	if !emailutil.IsValid(c.Email) {
		errs.add(FieldEmail, MsgInvalidEmail)
	}
	if len(c.Password) < MinPasswordLength {
		errs.add(FieldPassword, MsgPasswordTooShort)
	}
	return errs
}

// ValidateResetEmail checks the forgot-password form
func ValidateResetEmail(email string) Errors {
	var errs Errors
	if !emailutil.IsValid(email) {
		errs.add(FieldEmail, MsgInvalidResetEmail)
	}
	return errs
}

// SignUpErrorMessage is the alert text for a provider error during sign-up
func SignUpErrorMessage(providerMessage string) string {
	if providerMessage == providerAlreadyRegistered {
		return MsgAlreadyRegistered
	}
	return providerMessage
}

// PasswordChange is the input of the change-password form
type PasswordChange struct {
	New     string
	Confirm string
}

// ParsePasswordChange reads the change-password form
func ParsePasswordChange(form url.Values) PasswordChange {
	return PasswordChange{
		New:     form.Get(FieldNewPassword),
		Confirm: form.Get(FieldConfirmPassword),
	}
}

// Validate returns the inline field errors of the submission
func (p PasswordChange) Validate() Errors {
	var errs Errors
	switch {
	case p.New == "":
		errs.add(FieldNewPassword, MsgFieldRequired)
	case len(p.New) < MinPasswordLength:
		errs.add(FieldNewPassword, MsgPasswordTooShort)
	}
	if p.Confirm == "" {
		errs.add(FieldConfirmPassword, MsgFieldRequired)
	}
	return errs
}

// Mismatch reports whether both passwords were given but differ
func (p PasswordChange) Mismatch() bool {
	return p.New != "" && p.Confirm != "" && p.New != p.Confirm
}

// Ready reports whether the provider should be asked to update the password
func (p PasswordChange) Ready() bool {
	return len(p.New) >= MinPasswordLength && p.New == p.Confirm
}
