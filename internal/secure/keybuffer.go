// Package secure holds the workspace master key in a memguard enclave
// while the vault is unlocked. The enclave keeps the key encrypted at rest
// in process memory and mlock'd against swapping; plaintext copies exist
// only inside short-lived locked buffers that callers destroy when done.
package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrKeyDestroyed reports an Open on a buffer whose enclave was dropped.
var ErrKeyDestroyed = errors.New("secure: key buffer destroyed")

// KeyBuffer wraps a memguard.Enclave around one symmetric key.
type KeyBuffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	destroyed bool
}

// NewKeyBuffer seals key into a protected enclave. memguard wipes the
// input slice once the copy is made, so callers must not reuse it.
func NewKeyBuffer(key []byte) *KeyBuffer {
	return &KeyBuffer{enclave: memguard.NewEnclave(key)}
}

// Open decrypts the enclave into a locked buffer. The caller MUST call
// Destroy on the returned buffer when finished with the plaintext key.
func (k *KeyBuffer) Open() (*memguard.LockedBuffer, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.destroyed || k.enclave == nil {
		return nil, ErrKeyDestroyed
	}
	return k.enclave.Open()
}

// Destroy drops the enclave reference. Idempotent; a destroyed buffer
// fails further opens with ErrKeyDestroyed.
func (k *KeyBuffer) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.destroyed {
		return
	}
	k.enclave = nil
	k.destroyed = true
}
