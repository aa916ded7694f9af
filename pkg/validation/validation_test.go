package validation

import (
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid email", "user@example.com", false},
		{"valid email with subdomain", "user@mail.example.com", false},
		{"empty email", "", true},
		{"invalid format", "invalid-email", true},
		{"missing domain", "user@", true},
		{"too long", strings.Repeat("a", 250) + "@x.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"valid username", "alice_01", false},
		{"valid with dash", "tutor-math", false},
		{"empty", "", true},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", 51), true},
		{"invalid characters", "alice!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername(%q) error = %v, wantErr %v", tt.username, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "secret123", false},
		{"empty", "", true},
		{"too short", "abc", true},
		{"too long", strings.Repeat("x", 129), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRole(t *testing.T) {
	if err := ValidateRole("tutor"); err != nil {
		t.Errorf("tutor should be a valid role: %v", err)
	}
	if err := ValidateRole("student"); err != nil {
		t.Errorf("student should be a valid role: %v", err)
	}
	if err := ValidateRole("admin"); err == nil {
		t.Error("admin should not be a valid role")
	}
}

func TestValidateCourseID(t *testing.T) {
	if err := ValidateCourseID("course-101"); err != nil {
		t.Errorf("course-101 should be valid: %v", err)
	}
	if err := ValidateCourseID(""); err == nil {
		t.Error("empty course ID should be rejected")
	}
	if err := ValidateCourseID("course 101"); err == nil {
		t.Error("course ID with spaces should be rejected")
	}
}

func TestValidateSessionID(t *testing.T) {
	if err := ValidateSessionID("sess_abc123"); err != nil {
		t.Errorf("sess_abc123 should be valid: %v", err)
	}
	if err := ValidateSessionID(strings.Repeat("s", 101)); err == nil {
		t.Error("over-long session ID should be rejected")
	}
}
