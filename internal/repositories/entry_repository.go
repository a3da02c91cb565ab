package repositories

import "lifelog/internal/models"

// EntryRepository defines the interface for diary entry data access.
type EntryRepository interface {
	Create(entry *models.Entry) error
	GetByID(id string) (*models.Entry, error)
	// GetAllByUser returns the user's entries, newest first.
	GetAllByUser(userID string) ([]models.Entry, error)
	Update(entry *models.Entry) error
	Delete(id string) error
}
