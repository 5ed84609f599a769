package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Organization struct {
	ID        uuid.UUID `gorm:"type:char(36);primary_key" json:"id"`
	Name      string    `gorm:"size:150;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (org *Organization) BeforeCreate(tx *gorm.DB) error {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	return nil
}
