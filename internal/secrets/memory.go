package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/credstack/rotor/internal/secure"
)

// MemoryStore is a versioned in-memory Store for tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string][]memoryVersion
	clock   func() time.Time
}

type memoryVersion struct {
	value       string
	description string
	version     Version
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		secrets: make(map[string][]memoryVersion),
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source. Used in tests.
func (s *MemoryStore) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// Get returns the latest version of the secret at path.
func (s *MemoryStore) Get(_ context.Context, path string) (*secure.Buffer, Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.secrets[path]
	if !ok || len(versions) == 0 {
		return nil, Version{}, fmt.Errorf("memory get %s: %w", path, ErrNotFound)
	}

	latest := versions[len(versions)-1]
	return secure.NewBufferFromString(latest.value), latest.version, nil
}

// Put appends a new version for the secret at path.
func (s *MemoryStore) Put(_ context.Context, path string, value *secure.Buffer, description string) (Version, error) {
	var raw string
	if err := value.With(func(v []byte) error {
		raw = string(v)
		return nil
	}); err != nil {
		return Version{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	version := Version{
		Ref:       fmt.Sprintf("v%d", len(s.secrets[path])+1),
		CreatedAt: s.clock(),
	}
	s.secrets[path] = append(s.secrets[path], memoryVersion{
		value:       raw,
		description: description,
		version:     version,
	})

	return version, nil
}

// VersionCount reports how many versions exist for path. Test helper.
func (s *MemoryStore) VersionCount(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.secrets[path])
}

// Description returns the description stored with the latest version of
// path. Test helper.
func (s *MemoryStore) Description(path string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.secrets[path]
	if len(versions) == 0 {
		return ""
	}
	return versions[len(versions)-1].description
}
