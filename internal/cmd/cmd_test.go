package cmd

import (
	"testing"
	"time"
)

func TestParseMeta(t *testing.T) {
	metadata, err := parseMeta([]string{"ticket=BD-42", "owner=backend"})
	if err != nil {
		t.Fatalf("parseMeta failed: %v", err)
	}
	if metadata["ticket"] != "BD-42" || metadata["owner"] != "backend" {
		t.Errorf("unexpected metadata: %v", metadata)
	}

	if m, err := parseMeta(nil); err != nil || m != nil {
		t.Errorf("empty pairs should yield nil, got %v, %v", m, err)
	}

	for _, bad := range []string{"noequals", "=value"} {
		if _, err := parseMeta([]string{bad}); err == nil {
			t.Errorf("parseMeta(%q) should fail", bad)
		}
	}

	// Values may contain '='.
	metadata, err = parseMeta([]string{"expr=a=b"})
	if err != nil {
		t.Fatalf("parseMeta failed: %v", err)
	}
	if metadata["expr"] != "a=b" {
		t.Errorf("expected value a=b, got %q", metadata["expr"])
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{30 * time.Second, "<1m"},
		{90 * time.Second, "1m"},
		{45 * time.Minute, "45m"},
		{3 * time.Hour, "3h"},
		{50 * time.Hour, "2d"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.age); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.age, got, tt.want)
		}
	}
}
