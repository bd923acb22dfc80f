package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is one user's rating of a listing. A user reviews a listing at most once.
type Review struct {
	ID        uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	ListingID string    `gorm:"size:36;not null;uniqueIndex:idx_review_listing_user" json:"vm_id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_review_listing_user" json:"user_id"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}
