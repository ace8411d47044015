// Package identity derives stable GTFS trip and service ids from backend trip ids.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrCollision is returned when two different backend trips hash to the same key
var ErrCollision = errors.New("identity collision")

// TripKey returns the GTFS trip id for a backend trip id
func TripKey(backendID string) string {
	return hash(backendID)
}

// ServiceKey returns the GTFS service id for a backend trip id.
// It is distinct from TripKey for the same input.
func ServiceKey(backendID string) string {
	return hash("service" + backendID)
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Registry remembers which backend id produced each trip key during a session
type Registry struct {
	seen map[string]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]string)}
}

// Check records key as belonging to backendID. It returns ErrCollision when
// the key was already claimed by a different backend id.
func (r *Registry) Check(key, backendID string) error {
	if prev, ok := r.seen[key]; ok && prev != backendID {
		return fmt.Errorf("%w: key %s for %q already used by %q", ErrCollision, key, backendID, prev)
	}
	r.seen[key] = backendID
	return nil
}

// Len returns the number of distinct keys seen
func (r *Registry) Len() int {
	return len(r.seen)
}
