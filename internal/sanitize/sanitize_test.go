package sanitize

import (
	"testing"
)

var phoneRule = Rule{
	Pattern:     `(\+\d{2})\d+(\d{3})`,
	Replacement: "${1}xxx${2}",
}

var emailRule = Rule{
	Pattern:     `[^@\s]+@([^@\s]+)`,
	Replacement: "***@${1}",
}

func TestSanitizePhoneNumber(t *testing.T) {
	t.Parallel()
	s, err := NewSanitizer([]Rule{phoneRule})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.SanitizeValue("+62821233447"); got != "+62xxx447" {
		t.Fatalf("expected +62xxx447, got %v", got)
	}
}

func TestSanitizeRowsKeepsArity(t *testing.T) {
	t.Parallel()
	s, err := NewSanitizer([]Rule{emailRule})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := [][]any{
		{int64(1), "alice@example.com", nil},
		{int64(2), "bob@example.org", true},
	}
	s.SanitizeRows(rows)
	if len(rows[0]) != 3 || len(rows[1]) != 3 {
		t.Fatalf("row arity changed: %v", rows)
	}
	if rows[0][1] != "***@example.com" {
		t.Fatalf("expected redacted email, got %v", rows[0][1])
	}
	if rows[1][1] != "***@example.org" {
		t.Fatalf("expected redacted email, got %v", rows[1][1])
	}
	if rows[0][0] != int64(1) || rows[0][2] != nil || rows[1][2] != true {
		t.Fatalf("non-string cells changed: %v", rows)
	}
}

func TestSanitizeNestedDocument(t *testing.T) {
	t.Parallel()
	s, err := NewSanitizer([]Rule{phoneRule})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := map[string]any{
		"contact": map[string]any{"phone": "+62821233447"},
		"phones":  []any{"+62811111999", float64(7)},
	}
	s.SanitizeValue(doc)
	contact := doc["contact"].(map[string]any)
	if contact["phone"] != "+62xxx447" {
		t.Fatalf("expected nested phone redacted, got %v", contact["phone"])
	}
	phones := doc["phones"].([]any)
	if phones[0] != "+62xxx999" || phones[1] != float64(7) {
		t.Fatalf("unexpected array contents: %v", phones)
	}
}

func TestMultipleRulesOrdering(t *testing.T) {
	t.Parallel()
	s, err := NewSanitizer([]Rule{phoneRule, {Pattern: `xxx`, Replacement: "***"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.SanitizeValue("+62821233447"); got != "+62***447" {
		t.Fatalf("expected +62***447, got %v", got)
	}
}

func TestNoRules(t *testing.T) {
	t.Parallel()
	s, err := NewSanitizer(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.HasRules() {
		t.Fatal("expected HasRules to be false")
	}
	rows := [][]any{{"+62821233447"}}
	s.SanitizeRows(rows)
	if rows[0][0] != "+62821233447" {
		t.Fatalf("expected value untouched, got %v", rows[0][0])
	}
}

func TestNilSanitizer(t *testing.T) {
	t.Parallel()
	var s *Sanitizer
	if s.HasRules() {
		t.Fatal("nil sanitizer must report no rules")
	}
	if got := s.SanitizeValue("x"); got != "x" {
		t.Fatalf("expected passthrough, got %v", got)
	}
}

func TestInvalidPattern(t *testing.T) {
	t.Parallel()
	if _, err := NewSanitizer([]Rule{{Pattern: "(unclosed"}}); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}
