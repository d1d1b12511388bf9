package horosafe

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafePath(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")
	tests := []struct {
		elem    []string
		wantErr bool
	}{
		{[]string{"night-train"}, false},
		{[]string{"night-train", "index.html"}, false},
		{[]string{"../etc"}, true},
		{[]string{"a", "..", "..", "b"}, true},
		{[]string{"/abs"}, true},
		{[]string{""}, true},
	}
	for _, tt := range tests {
		got, err := SafePath(base, tt.elem...)
		if (err != nil) != tt.wantErr {
			t.Errorf("SafePath(%v) error=%v, wantErr=%v", tt.elem, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrPathTraversal) {
			t.Errorf("SafePath(%v): error %v does not wrap ErrPathTraversal", tt.elem, err)
		}
		if err == nil && !strings.HasPrefix(got, base) {
			t.Errorf("SafePath(%v) = %q, outside %q", tt.elem, got, base)
		}
	}
}

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"night-train", "entry_01", "a.b"} {
		if err := ValidateIdentifier(ok); err != nil {
			t.Errorf("ValidateIdentifier(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", ".hidden", "a/b", "a b", "é", strings.Repeat("x", MaxIdentifierLen+1)} {
		if err := ValidateIdentifier(bad); err == nil {
			t.Errorf("ValidateIdentifier(%q): expected error", bad)
		}
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 5)
	if err != nil || string(data) != "hello" {
		t.Fatalf("at limit: got %q, %v", data, err)
	}
	if _, err := LimitedReadAll(strings.NewReader("hello!"), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("over limit: got %v, want ErrTooLarge", err)
	}
}
