package validation

import (
	"strings"
	"testing"
)

func TestValidateEntityID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		// Valid ids
		{"hex text id", "fb988f89c5ee4047a3f9c2bbd1234567", false},
		{"uuid style", "550e8400-e29b-41d4-a716-446655440000", false},
		{"single char", "a", false},
		{"with dots", "doc.v2.final", false},
		{"with underscore", "doc_1", false},
		{"max length", strings.Repeat("a", MaxIDLength), false},

		// Invalid ids
		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxIDLength+1), true},
		{"traversal", "../etc/passwd", true},
		{"embedded traversal", "doc..id", true},
		{"slash", "docs/1", true},
		{"space", "doc 1", true},
		{"leading dot", ".hidden", true},
		{"null byte", "doc\x001", true},
		{"query injection", "doc?x=1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntityID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEntityID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeEntityID(t *testing.T) {
	t.Run("trims whitespace", func(t *testing.T) {
		got, err := SanitizeEntityID("  doc-1  ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "doc-1" {
			t.Errorf("got %q, want doc-1", got)
		}
	})

	t.Run("rejects invalid after trim", func(t *testing.T) {
		if _, err := SanitizeEntityID("  ../x  "); err == nil {
			t.Error("expected error for traversal id")
		}
	})
}
