package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FieldError is a single failed constraint attached to a request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors collects field failures. A nil or empty Errors means the input is valid.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Merge appends the failures in more whose field has none in e yet.
func (e Errors) Merge(more Errors) Errors {
	out := append(Errors(nil), e...)
	for _, fe := range more {
		if !e.Has(fe.Field) {
			out = append(out, fe)
		}
	}
	return out
}

// Has reports whether field has at least one failure.
func (e Errors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func (e *Errors) Add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

// Required records a failure when value is blank. It returns false in that case
// so callers can skip follow-up checks on the same field.
func (e *Errors) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "is required")
		return false
	}
	return true
}

// MaxLen counts runes, not bytes.
func (e *Errors) MaxLen(field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		e.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

func (e *Errors) ExactLen(field, value string, n int) {
	if utf8.RuneCountInString(value) != n {
		e.Add(field, fmt.Sprintf("must be exactly %d characters", n))
	}
}

// OptionalMaxLen checks the length of an optional value.
func (e *Errors) OptionalMaxLen(field string, value *string, max int) {
	if value != nil {
		e.MaxLen(field, *value, max)
	}
}

func (e *Errors) Email(field, value string) {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		e.Add(field, "must be a valid email address")
	}
}

// Phone accepts digits, spaces and the punctuation people type into phone
// fields, with at least seven digits.
func (e *Errors) Phone(field, value string) {
	digits := 0
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ' || r == '+' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			e.Add(field, "must be a valid phone number")
			return
		}
	}
	if digits < 7 {
		e.Add(field, "must be a valid phone number")
	}
}

func (e *Errors) URL(field, value string) {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		e.Add(field, "must be an absolute http(s) URL")
	}
}

// Clean drops null bytes and control characters other than newline, tab and
// carriage return, then trims surrounding whitespace.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// CleanOptional returns a cleaned copy of *s, or nil when the result is blank.
func CleanOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := Clean(*s)
	if v == "" {
		return nil
	}
	return &v
}
