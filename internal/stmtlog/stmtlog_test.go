package stmtlog

import (
	"strings"
	"testing"
)

func TestSummaryReplacesLiterals(t *testing.T) {
	t.Parallel()
	got := Summary("SELECT * FROM users WHERE email = 'alice@example.com'", DefaultMaxLen)
	if strings.Contains(got, "alice@example.com") {
		t.Fatalf("literal leaked into summary: %q", got)
	}
	if !strings.Contains(got, "$1") {
		t.Fatalf("expected placeholder in summary, got %q", got)
	}
}

func TestSummaryUnparseableFallsBack(t *testing.T) {
	t.Parallel()
	input := "this is not sql at all"
	if got := Summary(input, DefaultMaxLen); got != input {
		t.Fatalf("expected raw text for unparseable input, got %q", got)
	}
}

func TestTruncateShort(t *testing.T) {
	t.Parallel()
	if got := Truncate("SELECT 1", 200); got != "SELECT 1" {
		t.Fatalf("expected unchanged, got %q", got)
	}
}

func TestTruncateLong(t *testing.T) {
	t.Parallel()
	got := Truncate(strings.Repeat("a", 300), 200)
	if got != strings.Repeat("a", 200)+"...[truncated]" {
		t.Fatalf("unexpected truncation: %q", got)
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	t.Parallel()
	// "é" is two bytes; cutting at byte 3 would split the second one.
	got := Truncate("éééé", 3)
	if got != "é...[truncated]" {
		t.Fatalf("expected cut on rune boundary, got %q", got)
	}
}
