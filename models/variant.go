package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Variant is the sellable/consumable unit (a concrete part or accessory).
// Full catalog management lives in the back-office CRUD service; the core only
// needs the reference row that movements, parts, and sale lines point at.
type Variant struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrganizationId string          `gorm:"type:char(36);index;not null" json:"organization_id"`
	SKU            string          `gorm:"size:60;not null;uniqueIndex:idx_variant_org_sku" json:"sku"`
	Name           string          `gorm:"size:150;not null" json:"name"`
	Price          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
