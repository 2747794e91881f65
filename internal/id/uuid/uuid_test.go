// Package uuid includes tests for the UUID generator wrapper.
package uuid

import "testing"

// TestNewIDUniqueAndOrdered verifies IDs are unique and version 7.
func TestNewIDUniqueAndOrdered(t *testing.T) {
	t.Parallel()

	gen := NewGenerator()
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := gen.NewID()
		if err != nil {
			t.Fatalf("NewID() error = %v", err)
		}
		if len(id) != 36 {
			t.Fatalf("expected canonical UUID length, got %q", id)
		}
		if id[14] != '7' {
			t.Fatalf("expected version 7 UUID, got %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = struct{}{}
	}
}
