// Package validation checks request input field by field. Every rule that
// fails adds a message to the field, so callers report all problems at once.
package validation

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Errors maps a field name to every message raised against it.
type Errors map[string][]string

// Add records msg against field.
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Any reports whether at least one field has a message.
func (e Errors) Any() bool {
	for _, msgs := range e {
		if len(msgs) > 0 {
			return true
		}
	}
	return false
}

// Err returns e as an error when it holds messages, else nil.
func (e Errors) Err() error {
	if e.Any() {
		return e
	}
	return nil
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f, msgs := range e {
		if len(msgs) > 0 {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)
	var b strings.Builder
	b.WriteString("validation failed:")
	for _, f := range fields {
		b.WriteString(" " + f + ": " + strings.Join(e[f], "; ") + ".")
	}
	return b.String()
}

// ValidID reports whether s is a well-formed record id.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isEmail(s string) bool {
	return validate.Var(s, "email") == nil
}

func minLen(s string, n int) bool {
	return validate.Var(s, "min="+strconv.Itoa(n)) == nil
}

func hasUpperAndLower(s string) bool {
	var upper, lower bool
	for _, r := range s {
		upper = upper || unicode.IsUpper(r)
		lower = lower || unicode.IsLower(r)
	}
	return upper && lower
}

func hasDigit(s string) bool {
	return strings.ContainsFunc(s, unicode.IsDigit)
}

func hasSymbol(s string) bool {
	return strings.ContainsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
	})
}

// name checks a required human-readable field of at least two characters.
func name(errs Errors, field, label, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		errs.Add(field, label+" must be supplied")
		return value
	}
	if !minLen(value, 2) {
		errs.Add(field, label+" must be longer than 2 characters")
	}
	return value
}

func email(errs Errors, value string) string {
	value = NormalizeEmail(value)
	if value == "" {
		errs.Add("email", "Email must be supplied")
		return value
	}
	if !isEmail(value) {
		errs.Add("email", "Email must be a valid email address")
	}
	return value
}
