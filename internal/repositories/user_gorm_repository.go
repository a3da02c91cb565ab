package repositories

import (
	"errors"
	"fmt"

	"lifelog/internal/apperr"
	"lifelog/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database. A unique-index violation means
// the username is taken: the email is pre-checked by the service, so the
// username index is the only one left to trip.
func (r *GORMUserRepository) Create(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Wrap(apperr.Duplicate, "Username is already taken. Try a different one.", err)
		}
		return apperr.Wrap(apperr.Dependency, "Could not create user", err)
	}
	return nil
}

// GetByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "User not found")
		}
		return nil, apperr.Wrap(apperr.Dependency, fmt.Sprintf("failed to get user by username %s", username), err)
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "User not found")
		}
		return nil, apperr.Wrap(apperr.Dependency, fmt.Sprintf("failed to get user by email %s", email), err)
	}
	return &user, nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(id string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "User not found")
		}
		return nil, apperr.Wrap(apperr.Dependency, fmt.Sprintf("failed to get user by ID %s", id), err)
	}
	return &user, nil
}

// Update saves the full user record.
func (r *GORMUserRepository) Update(user *models.User) error {
	res := r.db.Save(user)
	if res.Error != nil {
		return apperr.Wrap(apperr.Dependency, "Could not update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "User not found")
	}
	return nil
}
