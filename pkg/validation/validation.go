// Package validation holds the form predicates shared by the registration
// wizard and the account endpoints.
package validation

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	schoolEmailDomain = "@gmail.com"
	minPasswordLength = 8
	nationalIDLength  = 13
)

// Password policy failures.
var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordNoDigit  = errors.New("password must contain at least one number")
	ErrPasswordNoSymbol = errors.New("password must contain at least one special character")
)

// IsNationalID reports whether s is exactly 13 ASCII digits.
func IsNationalID(s string) bool {
	return len(s) == nationalIDLength && allDigits(s)
}

// IsPhone accepts a local (0 + 9 digits) or international (+27 + 9 digits)
// number once all whitespace is removed.
func IsPhone(s string) bool {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	switch {
	case strings.HasPrefix(compact, "+27"):
		rest := compact[3:]
		return len(rest) == 9 && allDigits(rest)
	case strings.HasPrefix(compact, "0"):
		rest := compact[1:]
		return len(rest) == 9 && allDigits(rest)
	default:
		return false
	}
}

// IsSchoolEmail accepts <local>@gmail.com, ignoring case.
func IsSchoolEmail(s string) bool {
	lower := strings.ToLower(s)
	if !strings.HasSuffix(lower, schoolEmailDomain) {
		return false
	}
	local := lower[:len(lower)-len(schoolEmailDomain)]
	if local == "" || strings.Contains(local, "@") {
		return false
	}
	return !strings.ContainsFunc(local, unicode.IsSpace)
}

// CheckPassword returns the first policy the password violates, or nil.
func CheckPassword(s string) error {
	if len([]rune(s)) < minPasswordLength {
		return ErrPasswordTooShort
	}
	var digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !digit {
		return ErrPasswordNoDigit
	}
	if !symbol {
		return ErrPasswordNoSymbol
	}
	return nil
}

// IsStrongPassword is CheckPassword as a predicate.
func IsStrongPassword(s string) bool {
	return CheckPassword(s) == nil
}

// Register installs the predicates as validator tags: sa_id, sa_phone,
// school_email and strong_password.
func Register(v *validator.Validate) error {
	tags := map[string]func(string) bool{
		"sa_id":           IsNationalID,
		"sa_phone":        IsPhone,
		"school_email":    IsSchoolEmail,
		"strong_password": IsStrongPassword,
	}
	for tag, fn := range tags {
		fn := fn
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return fn(fl.Field().String())
		}); err != nil {
			return err
		}
	}
	return nil
}

// New returns a validator with the registration tags installed.
func New() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
