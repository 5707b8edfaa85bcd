package models

import "time"

// CartEntry stores one session's serialized cart.
type CartEntry struct {
	CartKey   string    `gorm:"column:cart_key;primaryKey"`
	Payload   string    `gorm:"column:payload;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (CartEntry) TableName() string { return "cart_entries" }
