package utils

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// IsValidRole checks if a role is valid
func IsValidRole(role string) bool {
	validRoles := []string{"admin", "teacher", "student"}
	for _, validRole := range validRoles {
		if role == validRole {
			return true
		}
	}
	return false
}

// SubjectCode builds a subject code from the subject name and grade level:
// the first three letters of each word, uppercased and joined, followed by the
// grade number. "Math" at grade 1 becomes MAT1, "Physical Education" at grade
// 9 becomes PHYEDU9. While exists reports a collision an "I" is appended.
func SubjectCode(name string, gradeLevel int, exists func(code string) bool) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		runes := []rune(word)
		if len(runes) > 3 {
			runes = runes[:3]
		}
		b.WriteString(strings.ToUpper(string(runes)))
	}
	code := fmt.Sprintf("%s%d", b.String(), gradeLevel)
	if exists == nil {
		return code
	}
	for exists(code) {
		code += "I"
	}
	return code
}

// IsValidFileExtension checks if file extension is allowed
func IsValidFileExtension(filename string, allowedExtensions []string) bool {
	if filename == "" {
		return false
	}

	parts := strings.Split(filename, ".")
	if len(parts) < 2 {
		return false
	}

	ext := strings.ToLower(parts[len(parts)-1])
	for _, allowedExt := range allowedExtensions {
		if ext == strings.ToLower(allowedExt) {
			return true
		}
	}
	return false
}

// SanitizeString removes dangerous characters from string
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
