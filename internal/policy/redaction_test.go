package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at asha@example.com or +91 98765 43210 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactIdentityNumbers(t *testing.T) {
	out, changed := RedactPII("mera aadhaar 2345 6789 0123 hai aur PAN ABCDE1234F")
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	if !strings.Contains(out, "[REDACTED_AADHAAR]") || !strings.Contains(out, "[REDACTED_PAN]") {
		t.Fatalf("identity numbers not redacted: %q", out)
	}
}

func TestRedactLeavesPlainTextAlone(t *testing.T) {
	in := "10th pass, I can cook"
	out, changed := RedactPII(in)
	if changed || out != in {
		t.Fatalf("RedactPII(%q) = %q, %v", in, out, changed)
	}
}

func TestForLogTruncates(t *testing.T) {
	long := strings.Repeat("क", 500)
	got := ForLog(long)
	if n := len([]rune(got)); n != maxLoggedRunes+1 {
		t.Fatalf("ForLog() rune length = %d, want %d", n, maxLoggedRunes+1)
	}
	if ForLog("call 9876543210") != "call [REDACTED_PHONE]" {
		t.Fatalf("ForLog() = %q", ForLog("call 9876543210"))
	}
}
