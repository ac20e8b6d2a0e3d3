// Package secure holds generated credential values in protected memory.
//
// A new secret exists in this process only between generation and apply.
// During that window it lives in a memguard enclave: encrypted at rest in
// memory, mlocked against swapping, and wiped on destruction. Ledger and
// log code never see the plaintext; they work with version references.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Buffer is a protected container for one secret value.
type Buffer struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex

	// destroyed allows idempotent Destroy calls and blocks use-after-destroy.
	destroyed bool
}

// NewBuffer copies the given bytes into a protected memory region. The
// caller should zero its own copy afterwards.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{enclave: memguard.NewEnclave(data)}
}

// NewBufferFromString is a convenience wrapper for string-valued secrets.
func NewBufferFromString(s string) *Buffer {
	return NewBuffer([]byte(s))
}

// With decrypts the value and invokes fn with the plaintext. The plaintext
// is wiped as soon as fn returns; fn must not retain the slice.
func (b *Buffer) With(fn func(value []byte) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return fn(nil)
	}

	locked, err := b.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// String decrypts and returns the value as a string. Prefer With where the
// value can stay inside a scoped callback; String is for handing a
// credential to a client library that requires one.
func (b *Buffer) String() (string, error) {
	var out string
	err := b.With(func(value []byte) error {
		out = string(value)
		return nil
	})
	return out, err
}

// Destroy marks the buffer as unusable. The encrypted enclave contents are
// garbage collected; call memguard.Purge at process exit for full cleanup.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.enclave = nil
	b.destroyed = true
}
