package user_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/markmehq/markme/internal/domain/user"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    user.Role
		wantErr bool
	}{
		{"admin", "ADMIN", user.RoleAdmin, false},
		{"student", "STUDENT", user.RoleStudent, false},
		{"lowercase", "admin", user.RoleAdmin, false},
		{"padded", " student ", user.RoleStudent, false},
		{"unknown", "SUPERVISOR", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			got, err := user.ParseRole(tt.in)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRole(%q) accepted an invalid role", tt.in)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jane@Example.COM", "jane@example.com"},
		{"  jane@example.com ", "jane@example.com"},
		{"jane@example.com", "jane@example.com"},
	}

	for _, tt := range tests {
		if got := user.NormalizeEmail(tt.in); got != tt.want {
			t.Fatalf("NormalizeEmail(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewUser(t *testing.T) {
	u := user.New("Jane Doe", " Jane@Example.COM ", user.RoleStudent, "hash")

	if u.ID == "" || u.QRToken == "" {
		t.Fatal("id and QR token must be generated")
	}

	if u.ID == u.QRToken {
		t.Fatal("QR token must not reuse the user id")
	}

	if u.Email != "jane@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}

	if u.CreatedAt.IsZero() {
		t.Fatal("createdAt must be set")
	}
}

// Neither the hash nor the scan token may leak through API responses.
func TestUserJSONHidesSecrets(t *testing.T) {
	u := user.New("Jane Doe", "jane@example.com", user.RoleStudent, "super-secret-hash")

	b, err := json.Marshal(u)

	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	out := string(b)

	if strings.Contains(out, "super-secret-hash") || strings.Contains(out, u.QRToken) {
		t.Fatalf("serialized user leaks secrets: %s", out)
	}
}
