package repositories

import (
	"errors"
	"fmt"

	"lifelog/internal/apperr"
	"lifelog/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMEntryRepository is a GORM implementation of EntryRepository.
type GORMEntryRepository struct {
	db *gorm.DB
}

// NewGORMEntryRepository creates a new instance of GORMEntryRepository.
func NewGORMEntryRepository(db *gorm.DB) *GORMEntryRepository {
	return &GORMEntryRepository{
		db: db,
	}
}

// Create creates a new entry in the database.
func (r *GORMEntryRepository) Create(entry *models.Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if err := r.db.Create(entry).Error; err != nil {
		return apperr.Wrap(apperr.Dependency, "Failed to create entry", err)
	}
	return nil
}

// GetByID retrieves a single entry by its ID from the database.
func (r *GORMEntryRepository) GetByID(id string) (*models.Entry, error) {
	var entry models.Entry
	if err := r.db.First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "Entry not found")
		}
		return nil, apperr.Wrap(apperr.Dependency, fmt.Sprintf("failed to get entry by ID %s", id), err)
	}
	return &entry, nil
}

// GetAllByUser retrieves a user's entries ordered by creation time, newest first.
func (r *GORMEntryRepository) GetAllByUser(userID string) ([]models.Entry, error) {
	var entries []models.Entry
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "Failed to fetch entries", err)
	}
	return entries, nil
}

// Update updates an existing entry in the database.
func (r *GORMEntryRepository) Update(entry *models.Entry) error {
	res := r.db.Save(entry) // Save updates all fields, including zero values
	if res.Error != nil {
		return apperr.Wrap(apperr.Dependency, "Failed to update entry", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "Entry not found")
	}
	return nil
}

// Delete deletes an entry by its ID from the database.
func (r *GORMEntryRepository) Delete(id string) error {
	res := r.db.Delete(&models.Entry{}, "id = ?", id)
	if res.Error != nil {
		return apperr.Wrap(apperr.Dependency, "Failed to delete entry", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "Entry not found")
	}
	return nil
}
