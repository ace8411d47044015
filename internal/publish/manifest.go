package publish

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Manifest describes the last published feed
type Manifest struct {
	GeneratedAt       string         `json:"generated_at"`
	FeedPath          string         `json:"feed_path"`
	FeedSHA256        string         `json:"feed_sha256"`
	CancellationsPath string         `json:"cancellations_path,omitempty"`
	Counts            map[string]int `json:"counts"`
}

// ReadManifest loads manifest.json from path
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// IsStale reports whether the manifest at path is missing, unreadable or
// older than maxAge. A zero maxAge always counts as stale.
func IsStale(path string, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return true
	}

	m, err := ReadManifest(path)
	if err != nil {
		return true
	}

	generatedAt, err := time.Parse(time.RFC3339, m.GeneratedAt)
	if err != nil {
		return true
	}

	return time.Since(generatedAt) > maxAge
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
