package imagestore

import (
	"context"
	"fmt"
	"sync"
)

// MemStore is an in-memory implementation of Store. It backs tests and local
// development; failure injection lets tests exercise the partial-failure
// paths of the services.
type MemStore struct {
	mu         sync.RWMutex
	objects    map[string]string
	nextID     int
	uploadErrs map[string]error // keyed by payload
	deleteErrs map[string]error // keyed by reference
}

// NewMemStore creates an empty in-memory image store.
func NewMemStore() *MemStore {
	return &MemStore{
		objects:    make(map[string]string),
		uploadErrs: make(map[string]error),
		deleteErrs: make(map[string]error),
	}
}

// FailUploadFor makes Upload fail for the given payload.
func (m *MemStore) FailUploadFor(payload string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrs[payload] = err
}

// FailDeleteFor makes Delete fail for the given reference.
func (m *MemStore) FailDeleteFor(reference string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErrs[reference] = err
}

// Upload stores the payload and returns a synthetic reference.
func (m *MemStore) Upload(ctx context.Context, payload string, c Constraints) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.uploadErrs[payload]; err != nil {
		return "", err
	}

	m.nextID++
	ref := fmt.Sprintf("mem://images/%d", m.nextID)
	m.objects[ref] = payload
	return ref, nil
}

// Delete removes the reference, reporting StatusAlreadyAbsent for unknown ones.
func (m *MemStore) Delete(ctx context.Context, reference string) (DeleteStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.deleteErrs[reference]; err != nil {
		return StatusFailed, err
	}

	if _, ok := m.objects[reference]; !ok {
		return StatusAlreadyAbsent, nil
	}
	delete(m.objects, reference)
	return StatusDeleted, nil
}

// Payload returns the stored payload behind a reference.
func (m *MemStore) Payload(reference string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.objects[reference]
	return p, ok
}

// Has reports whether a reference is currently stored.
func (m *MemStore) Has(reference string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[reference]
	return ok
}

// Len returns the number of stored objects.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
