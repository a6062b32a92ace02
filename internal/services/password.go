package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultHashCost matches the bcrypt cost used by the browser dashboard
	// so imported hashes keep verifying.
	DefaultHashCost   = 10
	minPasswordLength = 8
	// bcrypt refuses longer input
	maxPasswordBytes = 72
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// PasswordCheck is the result of running a password through the policy.
type PasswordCheck struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidatePassword checks the password policy: at least 8 characters, at
// most 72 bytes, and at least one digit and one letter. Every failing rule is
// reported.
func ValidatePassword(password string) PasswordCheck {
	problems := []string{}

	if utf8.RuneCountInString(password) < minPasswordLength {
		problems = append(problems, "Password must be at least 8 characters long")
	}
	if len(password) > maxPasswordBytes {
		problems = append(problems, "Password must be at most 72 bytes")
	}
	if !strings.ContainsAny(password, "0123456789") {
		problems = append(problems, "Password must contain at least one number")
	}
	if !containsASCIILetter(password) {
		problems = append(problems, "Password must contain at least one letter")
	}

	return PasswordCheck{Valid: len(problems) == 0, Errors: problems}
}

func containsASCIILetter(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return true
		}
	}
	return false
}

// ValidateEmail reports whether email looks like an address.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// HashPassword hashes password with bcrypt at the given cost.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the bcrypt hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
