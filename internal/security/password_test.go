package security_test

import (
	"testing"

	"github.com/markmehq/markme/internal/security"
)

func TestHashPasswordIsDeterministic(t *testing.T) {
	a := security.HashPassword("jane@example.com", "hunter22")
	b := security.HashPassword("jane@example.com", "hunter22")

	if a != b {
		t.Fatalf("same inputs produced different hashes: %s vs %s", a, b)
	}

	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestHashPasswordEmailActsAsSalt(t *testing.T) {
	a := security.HashPassword("jane@example.com", "hunter22")
	b := security.HashPassword("john@example.com", "hunter22")

	if a == b {
		t.Fatal("same password for different emails must not collide")
	}
}

func TestVerifyPassword(t *testing.T) {
	stored := security.HashPassword("jane@example.com", "hunter22")

	tests := []struct {
		name     string
		email    string
		password string
		want     bool
	}{
		{"correct", "jane@example.com", "hunter22", true},
		{"wrong_password", "jane@example.com", "hunter23", false},
		{"wrong_email", "john@example.com", "hunter22", false},
		{"empty_password", "jane@example.com", "", false},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			got := security.VerifyPassword(stored, tt.email, tt.password)

			if got != tt.want {
				t.Fatalf("VerifyPassword=%v, want %v", got, tt.want)
			}
		})
	}
}
