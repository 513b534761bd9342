package errprompt

import (
	"strings"
	"testing"
)

func TestAnnotateUnknownTable(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher([]Rule{
		{Pattern: `not found in database`, Message: "Call list_tables to see which tables you may use."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.Annotate("Error: table_names {orders} not found in database")
	want := "Error: table_names {orders} not found in database\n\nCall list_tables to see which tables you may use."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestAnnotateNoMatch(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher([]Rule{
		{Pattern: `(?i)permission denied`, Message: "Ask the user to grant SELECT."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	diag := `Error: ERROR: relation "foo" does not exist (SQLSTATE 42P01)`
	if got := m.Annotate(diag); got != diag {
		t.Fatalf("expected diagnostic unchanged, got %q", got)
	}
}

func TestAnnotateMultipleMatches(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher([]Rule{
		{Pattern: `(?i)permission denied`, Message: "Check your privileges."},
		{Pattern: `(?i)denied.*table`, Message: "Verify table access grants."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.Annotate("Error: permission denied for table users")
	if !strings.HasSuffix(got, "\n\nCheck your privileges.\nVerify table access grants.") {
		t.Fatalf("unexpected annotation: %q", got)
	}
}

func TestAnnotateNilMatcher(t *testing.T) {
	t.Parallel()
	var m *Matcher
	if got := m.Annotate("Error: boom"); got != "Error: boom" {
		t.Fatalf("expected unchanged diagnostic, got %q", got)
	}
	if got := m.MatchedPatterns("Error: boom"); got != nil {
		t.Fatalf("expected nil patterns, got %v", got)
	}
}

func TestMatchedPatterns(t *testing.T) {
	t.Parallel()
	m, err := NewMatcher([]Rule{
		{Pattern: `timeout`, Message: "a"},
		{Pattern: `canceling statement`, Message: "b"},
		{Pattern: `syntax`, Message: "c"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.MatchedPatterns("Error: canceling statement due to statement timeout")
	if len(got) != 2 || got[0] != "timeout" || got[1] != "canceling statement" {
		t.Fatalf("unexpected patterns: %v", got)
	}
}

func TestInvalidPattern(t *testing.T) {
	t.Parallel()
	_, err := NewMatcher([]Rule{{Pattern: "[invalid(regex", Message: "x"}})
	if err == nil {
		t.Fatal("expected error for invalid regex")
	}
	if !strings.Contains(err.Error(), "errprompt: invalid regex pattern") {
		t.Fatalf("unexpected error: %v", err)
	}
}
