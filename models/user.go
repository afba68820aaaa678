package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account that can place orders (user) or run
// fulfilment (admin)
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	AuthSubject string         `gorm:"uniqueIndex;not null" json:"-"` // token 'sub' claim
	Name        string         `gorm:"not null" json:"name"`
	Email       string         `gorm:"uniqueIndex;not null" json:"email"`
	Phone       string         `json:"phone"`
	Role        string         `gorm:"not null;default:'user'" json:"role"` // "user" or "admin"
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user runs fulfilment
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
