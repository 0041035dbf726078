package models

import (
	"time"
)

// Account represents an API caller that owns transformation quota
type Account struct {
	ID         uint      `gorm:"column:id;primaryKey" json:"id"`
	Name       string    `gorm:"column:name;size:100;not null" json:"name"`
	Email      string    `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	APIKeyHash string    `gorm:"column:api_key_hash;size:255;not null" json:"-"`
	IsAdmin    bool      `gorm:"column:is_admin;default:false" json:"is_admin"`
	IsActive   bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Account) TableName() string {
	return "accounts"
}
