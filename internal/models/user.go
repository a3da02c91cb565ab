package models

import "time"

// User represents an account holder of the journal.
type User struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username   string    `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Email      string    `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password   string    `json:"-" gorm:"type:varchar(255)"` // bcrypt hash, never serialized
	ProfilePic string    `json:"profilePic" gorm:"type:varchar(512)"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PublicProfile is the response shape for a user. It carries everything a
// client may see; the password hash has no way in.
type PublicProfile struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Public returns the user's public profile view.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}
