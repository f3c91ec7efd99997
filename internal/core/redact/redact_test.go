package redact

import (
	"strings"
	"testing"

	"github.com/neilberkman/cophist/pkg/chatsessions"
)

func TestTextAssignmentPattern(t *testing.T) {
	r := New(true)

	tests := []struct {
		in   string
		want string
	}{
		{"token=abc123XYZ", "token=<redacted>"},
		{"use SECRET=hunter2hunter2 here", "use SECRET=<redacted> here"},
		{"API_KEY=abcdef123456", "API_KEY=<redacted>"},
		{"key=short", "key=short"}, // under the 6-char minimum
	}
	for _, tt := range tests {
		if got := r.Text(tt.in); got != tt.want {
			t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTextHighEntropyPattern(t *testing.T) {
	r := New(true)
	token := "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdef0123"
	got := r.Text("bearer " + token + " accepted")
	if got != "bearer <redacted> accepted" {
		t.Errorf("Unexpected redaction: %q", got)
	}
	// 31 chars stays under the threshold
	short := strings.Repeat("a", 31)
	if got := r.Text(short); got != short {
		t.Errorf("Short token must pass through, got %q", got)
	}
}

func TestTextIdempotent(t *testing.T) {
	r := New(true)
	once := r.Text("token=abc123XYZ and " + strings.Repeat("Z", 40))
	twice := r.Text(once)
	if once != twice {
		t.Errorf("Re-redacting changed output: %q vs %q", once, twice)
	}
}

func TestDisabledPassesThrough(t *testing.T) {
	r := New(false)
	in := "token=abc123XYZ"
	if got := r.Text(in); got != in {
		t.Errorf("Disabled redactor altered text: %q", got)
	}
	if r.Count() != 0 {
		t.Errorf("Disabled redactor counted %d substitutions", r.Count())
	}
	if r.Enabled() {
		t.Error("Enabled() must report false")
	}
}

func TestCount(t *testing.T) {
	r := New(true)
	r.Text("token=abc123XYZ")
	r.Text(strings.Repeat("B", 40))
	if r.Count() != 2 {
		t.Errorf("Expected 2 substitutions, got %d", r.Count())
	}
}

func TestTextPtr(t *testing.T) {
	r := New(true)
	if r.TextPtr(nil) != nil {
		t.Error("nil must stay nil")
	}
	in := "secret=topsecret99"
	out := r.TextPtr(&in)
	if out == nil || *out != "secret=<redacted>" {
		t.Errorf("Unexpected output %v", out)
	}
}

func TestDumpScansNestedValues(t *testing.T) {
	r := New(true)
	v := chatsessions.Object(
		chatsessions.M("outer", chatsessions.Object(
			chatsessions.M("note", chatsessions.String("token=abc123XYZ")),
		)),
	)
	out := r.Dump(v)
	if out == nil || !strings.Contains(*out, "<redacted>") {
		t.Errorf("Nested secret survived: %v", out)
	}

	if r.Dump(nil) != nil {
		t.Error("nil value must dump to nil")
	}
	if r.Dump(chatsessions.Null()) != nil {
		t.Error("null value must dump to nil")
	}
}
