package users

import (
	"errors"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
)

// PasswordSymbols is the set of characters that count as a symbol for the
// password policy
const PasswordSymbols = `!@#$%^&*(),.?":{}|<>`

// MinPasswordLength is the minimum accepted password length
const MinPasswordLength = 8

// StrongPassword enforces the password policy: at least MinPasswordLength
// characters with an upper case letter, a lower case letter, a digit and a
// symbol from PasswordSymbols.
var StrongPassword = validation.By(checkStrongPassword)

func checkStrongPassword(value interface{}) error {
	v, _ := validation.Indirect(value)
	s, _ := v.(string)
	if s == "" {
		return nil
	}

	var upper, lower, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}

	if len(s) < MinPasswordLength || !upper || !lower || !digit || !symbol {
		return errors.New(`must be at least 8 characters and include upper and lower case letters, a digit and a symbol (!@#$%^&*(),.?":{}|<>)`)
	}
	return nil
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field/message map the templates can render next to each input. Non
// validation errors land under the _errors key.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["_errors"] = ErrorDetail(err)
	return out
}
