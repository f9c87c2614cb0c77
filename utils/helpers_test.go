package utils

import "testing"

func TestSubjectCode(t *testing.T) {
	tests := []struct {
		name       string
		subject    string
		gradeLevel int
		taken      map[string]bool
		want       string
	}{
		{
			name:       "single word",
			subject:    "Math",
			gradeLevel: 1,
			want:       "MAT1",
		},
		{
			name:       "two words",
			subject:    "Physical Education",
			gradeLevel: 9,
			want:       "PHYEDU9",
		},
		{
			name:       "short word kept whole",
			subject:    "IT",
			gradeLevel: 7,
			want:       "IT7",
		},
		{
			name:       "lowercase input",
			subject:    "biology",
			gradeLevel: 10,
			want:       "BIO10",
		},
		{
			name:       "collision appends suffix",
			subject:    "Math",
			gradeLevel: 1,
			taken:      map[string]bool{"MAT1": true},
			want:       "MAT1I",
		},
		{
			name:       "double collision",
			subject:    "Math",
			gradeLevel: 1,
			taken:      map[string]bool{"MAT1": true, "MAT1I": true},
			want:       "MAT1II",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := SubjectCode(tc.subject, tc.gradeLevel, func(code string) bool {
				return tc.taken[code]
			})
			if got != tc.want {
				t.Errorf("SubjectCode(%q, %d) = %q, want %q", tc.subject, tc.gradeLevel, got, tc.want)
			}
		})
	}
}

func TestSubjectCodeNilExists(t *testing.T) {
	if got := SubjectCode("Math", 2, nil); got != "MAT2" {
		t.Errorf("SubjectCode with nil exists = %q, want MAT2", got)
	}
}

func TestIsValidRole(t *testing.T) {
	valid := []string{"admin", "teacher", "student"}
	for _, role := range valid {
		if !IsValidRole(role) {
			t.Errorf("IsValidRole(%q) = false, want true", role)
		}
	}
	for _, role := range []string{"", "Admin", "root", "parent"} {
		if IsValidRole(role) {
			t.Errorf("IsValidRole(%q) = true, want false", role)
		}
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash equals plaintext")
	}
	if err := CheckPassword("s3cret-pass", hash); err != nil {
		t.Errorf("CheckPassword with correct password: %v", err)
	}
	if err := CheckPassword("wrong", hash); err == nil {
		t.Error("CheckPassword accepted a wrong password")
	}
}

func TestIsValidFileExtension(t *testing.T) {
	allowed := []string{"jpg", "png", "webp"}

	tests := []struct {
		filename string
		want     bool
	}{
		{"photo.jpg", true},
		{"photo.PNG", true},
		{"photo.webp", true},
		{"script.exe", false},
		{"noextension", false},
		{"", false},
		{"archive.tar.png", true},
	}
	for _, tc := range tests {
		if got := IsValidFileExtension(tc.filename, allowed); got != tc.want {
			t.Errorf("IsValidFileExtension(%q) = %v, want %v", tc.filename, got, tc.want)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  name\x00 "); got != "name" {
		t.Errorf("SanitizeString = %q, want %q", got, "name")
	}
}
