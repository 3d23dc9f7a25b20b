package credential

import "testing"

// TestHolderSetAndClear checks trimming and clearing of the key.
func TestHolderSetAndClear(t *testing.T) {
	h := NewHolder("  sk-test ")
	if key, ok := h.Get(); !ok || key != "sk-test" {
		t.Fatalf("Get() = %q, %v", key, ok)
	}
	h.Set("")
	if _, ok := h.Get(); ok {
		t.Fatal("Get() reports a key after clearing")
	}
}
