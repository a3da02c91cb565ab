package models

import "time"

// Entry represents a single diary entry ("memory") owned by a user.
// UserID is set at creation and never changes afterwards.
type Entry struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	UserID    string    `json:"userId" gorm:"index;type:varchar(36);not null"`
	Title     string    `json:"title" gorm:"type:varchar(255)" validate:"required"`
	Content   string    `json:"content" validate:"required"`
	Images    []string  `json:"images" gorm:"serializer:json"` // external references, input order preserved
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
