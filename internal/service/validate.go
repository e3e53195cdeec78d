package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"secret-friend/internal/config"
	"secret-friend/internal/model"
)

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

func checkLength(field, value string, rule config.LengthRule) error {
	n := utf8.RuneCountInString(value)
	if n < rule.MinLength || (rule.MaxLength > 0 && n > rule.MaxLength) {
		return fmt.Errorf("%w: %s must be between %d and %d characters", ErrValidation, field, rule.MinLength, rule.MaxLength)
	}
	return nil
}

func validateTitle(rules config.RulesConfig, title string) (string, error) {
	title = strings.TrimSpace(title)
	if err := checkLength("title", title, rules.Title); err != nil {
		return "", err
	}
	return title, nil
}

func validateAdminPassword(rules config.RulesConfig, password string) error {
	if err := checkLength("admin password", password, rules.AdminPassword); err != nil {
		return err
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: admin password is too long", ErrValidation)
	}
	return nil
}

// normalizeName collapses whitespace and checks the result against rule.
func normalizeName(field string, rule config.LengthRule, name string) (string, error) {
	name = model.NormalizeName(name)
	if name == "" {
		return "", fmt.Errorf("%w: %s cannot be empty", ErrValidation, field)
	}
	if err := checkLength(field, name, rule); err != nil {
		return "", err
	}
	return name, nil
}

// normalizeNames normalizes a batch of names and rejects any duplicate
// within the batch or against taken.
func normalizeNames(rule config.LengthRule, names []string, taken map[string]string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name, err := normalizeName("participant name", rule, raw)
		if err != nil {
			return nil, err
		}
		key := model.NameKey(name)
		if _, ok := taken[key]; ok || seen[key] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		seen[key] = true
		out = append(out, name)
	}
	return out, nil
}
