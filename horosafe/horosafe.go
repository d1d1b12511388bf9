// CLAUDE:SUMMARY Guards for untrusted input reaching the filesystem or memory: path containment, slug-safe identifiers, bounded reads.
// Package horosafe guards the points where request or record data reaches
// the filesystem or memory: output paths derived from entry slugs, and
// request bodies read by the HTTP API.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a derived path escapes its base.
var ErrPathTraversal = errors.New("horosafe: path escapes base directory")

// ErrTooLarge is returned by LimitedReadAll when the input exceeds its cap.
var ErrTooLarge = errors.New("horosafe: input too large")

// MaxIdentifierLen bounds identifiers used as file or directory names.
const MaxIdentifierLen = 200

// SafePath joins elem under base and fails if the result leaves base.
func SafePath(base string, elem ...string) (string, error) {
	for _, e := range elem {
		if e == "" || strings.Contains(e, "..") || filepath.IsAbs(e) {
			return "", fmt.Errorf("%w: %q", ErrPathTraversal, e)
		}
	}
	root := filepath.Clean(base)
	joined := filepath.Join(append([]string{root}, elem...)...)
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, joined)
	}
	return joined, nil
}

// ValidateIdentifier accepts non-empty names made of ASCII letters, digits,
// hyphen, underscore and dot, not starting with a dot.
func ValidateIdentifier(s string) error {
	if s == "" {
		return errors.New("horosafe: identifier must not be empty")
	}
	if len(s) > MaxIdentifierLen {
		return fmt.Errorf("horosafe: identifier longer than %d bytes", MaxIdentifierLen)
	}
	if s[0] == '.' {
		return fmt.Errorf("horosafe: identifier %q starts with a dot", s)
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("horosafe: invalid character %q in identifier", r)
		}
	}
	return nil
}

// LimitedReadAll reads at most limit bytes from r.
func LimitedReadAll(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}
