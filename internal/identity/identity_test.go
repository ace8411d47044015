package identity

import (
	"errors"
	"testing"
)

func TestKeysDeterministic(t *testing.T) {
	ids := []string{"1|1234|0|80|1062024", "2|bus|7|", ""}

	for _, id := range ids {
		if TripKey(id) != TripKey(id) {
			t.Errorf("TripKey(%q) is not deterministic", id)
		}
		if ServiceKey(id) != ServiceKey(id) {
			t.Errorf("ServiceKey(%q) is not deterministic", id)
		}
		if TripKey(id) == ServiceKey(id) {
			t.Errorf("trip and service key coincide for %q", id)
		}
		if len(TripKey(id)) != 64 {
			t.Errorf("expected 64 hex characters, got %d", len(TripKey(id)))
		}
	}
}

func TestKnownDigest(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := TripKey("abc"); got != want {
		t.Errorf("TripKey(abc) = %s, want %s", got, want)
	}
	if ServiceKey("abc") != TripKey("serviceabc") {
		t.Error("expected ServiceKey to hash the prefixed id")
	}
}

func TestRegistryCheck(t *testing.T) {
	r := NewRegistry()
	key := TripKey("trip-a")

	if err := r.Check(key, "trip-a"); err != nil {
		t.Fatalf("first check: %v", err)
	}
	if err := r.Check(key, "trip-a"); err != nil {
		t.Errorf("same backend id should not collide: %v", err)
	}

	err := r.Check(key, "trip-b")
	if !errors.Is(err, ErrCollision) {
		t.Errorf("expected ErrCollision, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 key, got %d", r.Len())
	}
}
