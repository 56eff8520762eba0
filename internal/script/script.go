// Package script provides the Script aggregate: a named, ordered list of
// phrases that users record one line at a time.
package script

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrScriptNotFound is returned when a script cannot be found by ID or name.
	ErrScriptNotFound = errors.New("script not found")
	// ErrDuplicateName is returned when another script already uses the name.
	ErrDuplicateName = errors.New("script name already exists")
	// ErrNameRequired is returned for a blank script name.
	ErrNameRequired = errors.New("script name is required")
	// ErrNoLines is returned when a script would have no phrases.
	ErrNoLines = errors.New("script has no non-empty lines")
	// ErrNotTextFile is returned when an uploaded script file is not a .txt file.
	ErrNotTextFile = errors.New("script file is not a .txt file")
)

// DuplicateNameError carries the conflicting name. It matches ErrDuplicateName.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("script name %q already exists", e.Name)
}

// Is reports whether target is ErrDuplicateName.
func (e *DuplicateNameError) Is(target error) bool {
	return target == ErrDuplicateName
}

// Script is a named list of phrases.
type Script struct {
	ID        int64
	Name      string
	Lines     []string
	CreatedAt time.Time
}

// New creates a script with the given name and lines.
func New(name string, lines []string) *Script {
	return &Script{
		Name:      name,
		Lines:     append([]string(nil), lines...),
		CreatedAt: time.Now().UTC(),
	}
}

// LineCount returns the number of phrases in the script.
func (s *Script) LineCount() int {
	return len(s.Lines)
}

// HasLine reports whether index addresses a phrase of the script.
func (s *Script) HasLine(index int) bool {
	return index >= 0 && index < len(s.Lines)
}

// Clone returns a deep copy of the script.
func (s *Script) Clone() *Script {
	if s == nil {
		return nil
	}
	c := *s
	c.Lines = append([]string(nil), s.Lines...)
	return &c
}

// ParseLines splits content into trimmed, non-empty lines. LF, CRLF and
// lone CR endings are all accepted, as are the Unicode line and paragraph
// separators. Invalid UTF-8 sequences are replaced with U+FFFD.
func ParseLines(content []byte) []string {
	text := strings.ToValidUTF8(string(content), "\uFFFD")
	var lines []string
	for _, line := range strings.FieldsFunc(text, isLineBreak) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
