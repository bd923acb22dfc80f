package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser     = "user"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

// User is a marketplace account.
type User struct {
	ID        uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Name      string    `gorm:"size:255" json:"name"`
	Role      string    `gorm:"size:50;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RefreshToken tracks an issued refresh token (by jti) for rotation and revocation.
type RefreshToken struct {
	ID        uuid.UUID `gorm:"size:36;primaryKey"`
	TokenID   string    `gorm:"size:64;uniqueIndex;not null"`
	UserID    uuid.UUID `gorm:"size:36;not null;index"`
	Revoked   bool      `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

// Migrate runs AutoMigrate for the auth schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &RefreshToken{})
}
