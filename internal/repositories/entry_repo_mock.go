package repositories

import (
	"sort"
	"sync"
	"time"

	"lifelog/internal/apperr"
	"lifelog/internal/models"

	"github.com/google/uuid"
)

// MockEntryRepository is an in-memory implementation of EntryRepository.
type MockEntryRepository struct {
	entries map[string]models.Entry
	mu      sync.RWMutex
}

// NewMockEntryRepository creates a new instance of MockEntryRepository.
func NewMockEntryRepository() *MockEntryRepository {
	return &MockEntryRepository{
		entries: make(map[string]models.Entry),
	}
}

// Create adds a new entry.
func (r *MockEntryRepository) Create(entry *models.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	r.entries[entry.ID] = *entry
	return nil
}

// GetByID returns an entry by its ID.
func (r *MockEntryRepository) GetByID(id string) (*models.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "Entry not found")
	}
	return &entry, nil
}

// GetAllByUser returns a user's entries, newest first.
func (r *MockEntryRepository) GetAllByUser(userID string) ([]models.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]models.Entry, 0)
	for _, e := range r.entries {
		if e.UserID == userID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// Update replaces an existing entry.
func (r *MockEntryRepository) Update(entry *models.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.entries[entry.ID]
	if !ok {
		return apperr.New(apperr.NotFound, "Entry not found")
	}
	entry.CreatedAt = existing.CreatedAt
	entry.UpdatedAt = time.Now()
	r.entries[entry.ID] = *entry
	return nil
}

// Delete removes an entry by its ID.
func (r *MockEntryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return apperr.New(apperr.NotFound, "Entry not found")
	}
	delete(r.entries, id)
	return nil
}
