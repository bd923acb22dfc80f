package services

import (
	"strings"
	"unicode"
)

// PasswordRule is one requirement a password must satisfy.
type PasswordRule struct {
	Message string
	Check   func(string) bool
}

// PasswordValidator checks a password against every rule and reports all failures.
type PasswordValidator struct {
	rules  []PasswordRule
	common map[string]bool
}

// NewPasswordValidator returns the marketplace policy: at least 8 characters
// with upper-case, lower-case and a digit.
func NewPasswordValidator() *PasswordValidator {
	return &PasswordValidator{
		rules: []PasswordRule{
			{"password must be at least 8 characters long", func(p string) bool { return len([]rune(p)) >= 8 }},
			{"password must contain at least one uppercase letter", containsRune(unicode.IsUpper)},
			{"password must contain at least one lowercase letter", containsRune(unicode.IsLower)},
			{"password must contain at least one number", containsRune(unicode.IsDigit)},
		},
		common: map[string]bool{
			"password1":   true,
			"password123": true,
			"qwerty123":   true,
			"welcome1":    true,
			"letmein1":    true,
		},
	}
}

func containsRune(pred func(rune) bool) func(string) bool {
	return func(p string) bool { return strings.IndexFunc(p, pred) >= 0 }
}

// Validate returns the messages of every failed rule, or nil.
func (v *PasswordValidator) Validate(password string) []string {
	var failed []string
	for _, rule := range v.rules {
		if !rule.Check(password) {
			failed = append(failed, rule.Message)
		}
	}
	if v.common[strings.ToLower(password)] {
		failed = append(failed, "password is too common")
	}
	return failed
}
