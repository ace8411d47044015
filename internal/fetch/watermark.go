package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// FileStore keeps one watermark file per station query in Dir.
// Files hold integer epoch seconds.
type FileStore struct {
	Dir string
}

// Path returns the watermark file of a station query
func (s FileStore) Path(station string) string {
	return filepath.Join(s.Dir, "latest_timestamp_"+safeName(station)+".txt")
}

// Load returns the stored watermark. ok is false when none was saved yet.
func (s FileStore) Load(station string) (time.Time, bool, error) {
	data, err := os.ReadFile(s.Path(station))
	if os.IsNotExist(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read watermark: %w", err)
	}

	secs, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse watermark %s: %w", s.Path(station), err)
	}
	return time.Unix(secs, 0), true, nil
}

// Save replaces the watermark atomically
func (s FileStore) Save(station string, t time.Time) error {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".latest_timestamp_*")
	if err != nil {
		return fmt.Errorf("failed to create watermark temp file: %w", err)
	}
	if _, err := tmp.WriteString(strconv.FormatInt(t.Unix(), 10)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write watermark: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close watermark: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(station)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace watermark: %w", err)
	}
	return nil
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, s)
}
