package pattern

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestExpand_RandomLengths(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		length  int
		charset *regexp.Regexp
	}{
		{"qualified random", "{random:12}", 12, regexp.MustCompile(`^[a-zA-Z0-9]+$`)},
		{"bare random", "{random}", 8, regexp.MustCompile(`^[a-zA-Z0-9]+$`)},
		{"lower", "{random_lower:5}", 5, regexp.MustCompile(`^[a-z]+$`)},
		{"bare lower", "{random_lower}", 8, regexp.MustCompile(`^[a-z]+$`)},
		{"upper", "{random_upper:3}", 3, regexp.MustCompile(`^[A-Z]+$`)},
		{"digits", "{random_digit:6}", 6, regexp.MustCompile(`^[0-9]+$`)},
		{"bare digits", "{random_digit}", 6, regexp.MustCompile(`^[0-9]+$`)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Expand(tc.input, "")
			if len(got) != tc.length {
				t.Fatalf("expected length %d, got %d (%q)", tc.length, len(got), got)
			}
			if !tc.charset.MatchString(got) {
				t.Fatalf("output %q outside expected charset", got)
			}
		})
	}
}

func TestExpand_EachOccurrenceIsFresh(t *testing.T) {
	got := Expand("{random:16} {random:16}", "")
	parts := strings.Split(got, " ")
	if len(parts) != 2 {
		t.Fatalf("expected two tokens, got %q", got)
	}
	if parts[0] == parts[1] {
		t.Fatalf("expected distinct random values, got %q twice", parts[0])
	}
}

func TestExpand_DateAndTime(t *testing.T) {
	now := time.Now()
	got := Expand("{date} {time}", "")
	want := now.Format("2006-01-02") + " " + now.Format("15:04")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestExpand_UUIDIsEightHexChars(t *testing.T) {
	got := Expand("{uuid}", "")
	if !regexp.MustCompile(`^[0-9a-f]{8}$`).MatchString(got) {
		t.Fatalf("expected 8 hex chars, got %q", got)
	}
}

func TestExpand_RecipientTokens(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		recipient string
		want      string
	}{
		{"email", "hi {email}", "john.doe@example.com", "hi john.doe@example.com"},
		{"name from dots", "Dear {name}", "john.doe@example.com", "Dear John Doe"},
		{"name from underscores", "{name}", "jane_q_smith@x.org", "Jane Q Smith"},
		{"name from hyphens", "{name}", "mary-ann@x.org", "Mary Ann"},
		{"no recipient leaves tokens", "hi {email}, {name}", "", "hi {email}, {name}"},
		{"unknown token untouched", "{nope} {email}", "a@b.c", "{nope} a@b.c"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Expand(tc.input, tc.recipient); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

// Non-random tokens must expand identically when rendered twice with the same
// recipient in the same minute.
func TestExpand_DeterministicTokensAreIdempotent(t *testing.T) {
	in := "{date} {time} {email} {name}"
	a := Expand(in, "bob@example.com")
	b := Expand(in, "bob@example.com")
	if a != b {
		t.Fatalf("expected identical output, got %q vs %q", a, b)
	}
}

func TestExpand_NoTokensPassThrough(t *testing.T) {
	in := "plain text, no braces"
	if got := Expand(in, "a@b.c"); got != in {
		t.Fatalf("expected passthrough, got %q", got)
	}
}
