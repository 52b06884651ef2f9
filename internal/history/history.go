// Package history retains submitted command lines and resolves !n / !-n
// event designators against them.
package history

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrBadFormat rejects designator words that are not !n or !-n.
var ErrBadFormat = errors.New("Invalid event designator format, accepted use-cases: {!n, !-n}")

// DefaultLimit bounds how many lines a store retains.
const DefaultLimit = 500

// Store holds the session's command lines, oldest first, keeping at most
// DefaultLimit of them; the oldest drop out when the bound is hit. When
// constructed with a path it can load and persist them across sessions.
type Store struct {
	path    string
	limit   int
	entries []string
}

// New returns an empty store. path may be empty for a memory-only store.
func New(path string) *Store {
	return &Store{path: path, limit: DefaultLimit}
}

// Load reads persisted entries from the store's path. A missing file is not
// an error; the session simply starts with empty history.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load history: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			s.entries = append(s.entries, line)
		}
	}
	s.trim()
	return nil
}

// Save writes all entries back to the store's path, one per line.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	var b strings.Builder
	for _, e := range s.entries {
		b.WriteString(e)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(s.path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Append records a submitted line. Blank lines are not retained.
func (s *Store) Append(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	s.entries = append(s.entries, line)
	s.trim()
}

// trim drops the oldest entries past the retention bound. Designators and
// the history listing both index the retained slice, so they stay in
// agreement after a trim.
func (s *Store) trim() {
	if s.limit <= 0 || len(s.entries) <= s.limit {
		return
	}
	s.entries = append([]string(nil), s.entries[len(s.entries)-s.limit:]...)
}

// Len reports the number of retained entries.
func (s *Store) Len() int { return len(s.entries) }

// Entries returns a copy of the retained lines, oldest first.
func (s *Store) Entries() []string {
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}

// IsDesignator reports whether word names an event designator. Any word
// beginning with '!' is claimed; malformed ones fail later in Recall.
func IsDesignator(word string) bool {
	return strings.HasPrefix(word, "!")
}

// Recalled is the result of resolving a designator.
type Recalled struct {
	// Line is the stored command line the designator selected.
	Line string

	// Argv is the reconstructed argument vector: the program name and at
	// most one argument. Anything beyond the second word of the stored line
	// is dropped. That truncation is the recall contract, not a replay of
	// the full command.
	Argv []string
}

// Recall resolves a !n or !-n designator. It assumes the designator line
// itself has already been appended as the newest entry, so that entry is
// excluded from selection: !n counts 1-based from the oldest entry, !-n
// counts back from the entry just before the designator.
func (s *Store) Recall(word string) (*Recalled, error) {
	if !IsDesignator(word) || len(word) < 2 {
		return nil, ErrBadFormat
	}
	body := word[1:]

	// m excludes the designator entry appended just before this call.
	m := len(s.entries) - 1

	var idx int
	switch {
	case strings.HasPrefix(body, "-"):
		n, err := strconv.Atoi(body[1:])
		if err != nil {
			return nil, ErrBadFormat
		}
		if n < 1 || n > m {
			return nil, errors.New("Improper n-value for !-n cmd")
		}
		idx = m - n
	default:
		n, err := strconv.Atoi(body)
		if err != nil {
			return nil, ErrBadFormat
		}
		if n < 1 || n > m {
			return nil, errors.New("Improper n-value for !n cmd")
		}
		idx = n - 1
	}

	line := s.entries[idx]
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("Improper n-value for !n cmd")
	}
	if len(fields) > 2 {
		fields = fields[:2]
	}
	return &Recalled{Line: line, Argv: fields}, nil
}
