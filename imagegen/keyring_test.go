package imagegen

import (
	"errors"
	"testing"
)

func TestKeyRing_SelectKey(t *testing.T) {
	keys := NewKeyRing("  free-key ", true)
	if keys.Key() != "free-key" {
		t.Fatalf("expected trimmed key, got %q", keys.Key())
	}
	if keys.Elevated() {
		t.Error("new key ring should not be elevated")
	}

	if err := keys.SelectKey("paid-key"); err != nil {
		t.Fatalf("SelectKey: %v", err)
	}
	if keys.Key() != "paid-key" || !keys.Elevated() {
		t.Errorf("expected elevated paid-key, got %q elevated=%v", keys.Key(), keys.Elevated())
	}

	if err := keys.SelectKey("   "); err == nil {
		t.Error("expected error for empty key")
	}
	if keys.Key() != "paid-key" {
		t.Error("empty selection must not replace the key")
	}
}

func TestKeyRing_SelectionDisabled(t *testing.T) {
	keys := NewKeyRing("free-key", false)
	if keys.SelectionAvailable() {
		t.Error("selection should be unavailable")
	}
	if err := keys.SelectKey("paid-key"); !errors.Is(err, ErrKeySelectionUnavailable) {
		t.Errorf("expected ErrKeySelectionUnavailable, got %v", err)
	}
	if keys.Key() != "free-key" {
		t.Error("key should be unchanged")
	}
}

func TestKeyRing_NilSelectionAvailable(t *testing.T) {
	var keys *KeyRing
	if keys.SelectionAvailable() {
		t.Error("nil key ring must not offer selection")
	}
}

func TestElevatedAccessError(t *testing.T) {
	notFound := errors.New("Requested entity was not found.")
	other := errors.New("deadline exceeded")

	tests := []struct {
		name     string
		err      error
		selector CredentialSelector
		elevated bool
	}{
		{"not found with selection", notFound, NewKeyRing("k", true), true},
		{"not found without selection", notFound, NewKeyRing("k", false), false},
		{"not found with no selector", notFound, nil, false},
		{"other error with selection", other, NewKeyRing("k", true), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := elevatedAccessError(tt.err, tt.selector)
			if errors.Is(got, ErrElevatedAccessRequired) != tt.elevated {
				t.Errorf("elevated = %v, expected %v (err: %v)", !tt.elevated, tt.elevated, got)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("original error must stay in the chain, got %v", got)
			}
		})
	}
}
