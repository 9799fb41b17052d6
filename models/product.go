package models

import "time"

// Product is a second-hand listing. Conversations are always about one product
// and its seller is the second participant.
type Product struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Price       float64   `json:"price,omitempty"`
	Image       string    `gorm:"size:500" json:"image,omitempty"`
	SellerID    string    `gorm:"size:36;index;not null" json:"seller,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"-"`
}

var ProductSummaryColumns = []string{"id", "name", "image"}
