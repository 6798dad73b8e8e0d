package validation

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"first.last@sub.example.org", true},
		{"", false},
		{"no-at-sign", false},
		{"@example.com", false},
		{"user@", false},
		{"user@nodot", false},
		{"user@example.", false},
		{"two@@example.com", false},
		{"with space@example.com", false},
	}

	for _, tt := range tests {
		if got := IsValidEmail(tt.email); got != tt.want {
			t.Fatalf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestIsValidPassword(t *testing.T) {
	if IsValidPassword("short") {
		t.Fatalf("short password must be invalid")
	}
	if !IsValidPassword("longenough") {
		t.Fatalf("long password must be valid")
	}
}

func TestIsValidRating(t *testing.T) {
	for rating := 1; rating <= 5; rating++ {
		if !IsValidRating(rating) {
			t.Fatalf("rating %d must be valid", rating)
		}
	}
	if IsValidRating(0) || IsValidRating(6) || IsValidRating(-1) {
		t.Fatalf("ratings outside 1..5 must be invalid")
	}
}
