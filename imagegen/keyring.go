package imagegen

import (
	"errors"
	"strings"
	"sync"
)

// ErrKeySelectionUnavailable is returned by SelectKey when the host offers no selection flow.
var ErrKeySelectionUnavailable = errors.New("imagegen: credential selection is not available")

// CredentialSelector is the host capability that lets the user pick a
// different (paid) credential at runtime. Its presence is what turns an
// upscale "entity not found" rejection into ErrElevatedAccessRequired.
type CredentialSelector interface {
	// SelectionAvailable reports whether a selection flow can be offered.
	SelectionAvailable() bool
	// SelectKey makes key the credential for subsequent calls.
	SelectKey(key string) error
}

// KeyRing holds the API key used by providers. Providers read it on every
// call, so a key selected mid-session applies to the next request.
type KeyRing struct {
	mu        sync.RWMutex
	key       string
	elevated  bool
	selection bool
}

// NewKeyRing returns a key ring holding key. When allowSelection is false
// the ring never offers a selection flow.
func NewKeyRing(key string, allowSelection bool) *KeyRing {
	return &KeyRing{key: strings.TrimSpace(key), selection: allowSelection}
}

// Key returns the current key.
func (k *KeyRing) Key() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.key
}

// Elevated reports whether the current key was selected through SelectKey.
func (k *KeyRing) Elevated() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.elevated
}

// SelectionAvailable implements CredentialSelector.
func (k *KeyRing) SelectionAvailable() bool {
	if k == nil {
		return false
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.selection
}

// SelectKey implements CredentialSelector.
func (k *KeyRing) SelectKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("imagegen: selected key is empty")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.selection {
		return ErrKeySelectionUnavailable
	}
	k.key = key
	k.elevated = true
	return nil
}

var _ CredentialSelector = (*KeyRing)(nil)

// elevatedAccessError translates an upscale failure. The translation only
// happens when a selector is present and offers a selection flow;
// otherwise the original error is returned.
func elevatedAccessError(err error, selector CredentialSelector) error {
	if selector == nil || !selector.SelectionAvailable() || !IsEntityNotFound(err) {
		return err
	}
	return errors.Join(ErrElevatedAccessRequired, err)
}
