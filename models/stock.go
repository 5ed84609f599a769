package models

import (
	"errors"
	"fmt"
	"time"

	"bitbucket.org/movilfix/taller_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockLevel is the derived per-(branch, variant) counter pair. Qty is
// on-hand, Reserved is pledged-to-a-ticket-but-not-yet-consumed. The row is
// created lazily by the first inbound movement and never deleted. Reserved may
// transiently exceed Qty; qty >= 0 is the invariant every applied movement
// must preserve.
type StockLevel struct {
	ID        int       `gorm:"primary_key" json:"id"`
	BranchId  int       `gorm:"not null;uniqueIndex:idx_stock_key" json:"branch_id"`
	VariantId int       `gorm:"not null;uniqueIndex:idx_stock_key" json:"variant_id"`
	Qty       int       `gorm:"not null;default:0" json:"qty"`
	Reserved  int       `gorm:"not null;default:0" json:"reserved"`
	Min       int       `gorm:"not null;default:0" json:"min"`
	Max       int       `gorm:"not null;default:1000" json:"max"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Movement is the append-only audit row a StockLevel is derived from. Never
// updated, never deleted.
type Movement struct {
	ID        int          `gorm:"primary_key" json:"id"`
	BranchId  int          `gorm:"index;not null" json:"branch_id"`
	VariantId int          `gorm:"index;not null" json:"variant_id"`
	Type      MovementType `gorm:"type:varchar(10);not null" json:"type"`
	Qty       int          `gorm:"not null" json:"qty"`
	Reason    string       `gorm:"size:255" json:"reason"`
	Folio     string       `gorm:"size:40;index" json:"folio"`
	TicketId  *int         `gorm:"index" json:"ticket_id"`
	UserId    int          `gorm:"not null" json:"user_id"`
	Ip        string       `gorm:"size:45" json:"ip"`
	UserAgent string       `gorm:"size:255" json:"user_agent"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

func GetStockLevel(db *gorm.DB, branchId, variantId int) (*StockLevel, error) {
	var stock StockLevel
	err := db.Where("branch_id = ? AND variant_id = ?", branchId, variantId).First(&stock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: stock for branch %d variant %d", utils.ErrNotFound, branchId, variantId)
		}
		return nil, err
	}
	return &stock, nil
}

/* Write ops. Each is a single pre-bound statement suitable for ApplyBatch. */

// CreateMovementOp appends the audit row.
func CreateMovementOp(movement *Movement) WriteOp {
	return func(tx *gorm.DB) error {
		return tx.Create(movement).Error
	}
}

// UpsertStockIncrementOp lazily creates the counter row or adds qty to it, in
// one statement (INSERT ... ON DUPLICATE KEY UPDATE / ON CONFLICT DO UPDATE).
func UpsertStockIncrementOp(branchId, variantId, qty int) WriteOp {
	return func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "branch_id"}, {Name: "variant_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"qty": gorm.Expr("qty + ?", qty),
			}),
		}).Create(&StockLevel{
			BranchId:  branchId,
			VariantId: variantId,
			Qty:       qty,
		}).Error
	}
}

// DecrementStockOp subtracts qty from on-hand, guarded so the counter can
// never go negative. The pre-read in the movement workflow already checked
// availability; losing the window between that read and this statement is the
// documented race, surfaced here as ErrConcurrencyConflict.
func DecrementStockOp(branchId, variantId, qty int) WriteOp {
	return func(tx *gorm.DB) error {
		result := tx.Model(&StockLevel{}).
			Where("branch_id = ? AND variant_id = ? AND qty >= ?", branchId, variantId, qty).
			Update("qty", gorm.Expr("qty - ?", qty))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: stock branch %d variant %d", utils.ErrConcurrencyConflict, branchId, variantId)
		}
		return nil
	}
}

// IncrementReservedOp pledges qty units to a ticket part. Upserts like
// UpsertStockIncrementOp so a pledge made before the first inbound movement
// still shows up as a counter row (qty 0, reserved > 0).
func IncrementReservedOp(branchId, variantId, qty int) WriteOp {
	return func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "branch_id"}, {Name: "variant_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"reserved": gorm.Expr("reserved + ?", qty),
			}),
		}).Create(&StockLevel{
			BranchId:  branchId,
			VariantId: variantId,
			Reserved:  qty,
		}).Error
	}
}

// DecrementReservedOp undoes a pledge (release) without touching on-hand.
func DecrementReservedOp(branchId, variantId, qty int) WriteOp {
	return func(tx *gorm.DB) error {
		return tx.Model(&StockLevel{}).
			Where("branch_id = ? AND variant_id = ?", branchId, variantId).
			Update("reserved", gorm.Expr("reserved - ?", qty)).Error
	}
}

// ConsumeStockOp moves qty units from both on-hand and reserved in one
// statement, for a part leaving reservation into the repair. Reservations may
// exceed on-hand, so the decrement carries the same qty guard as
// DecrementStockOp; a back-ordered part fails the batch instead of driving
// on-hand negative.
func ConsumeStockOp(branchId, variantId, qty int) WriteOp {
	return func(tx *gorm.DB) error {
		result := tx.Model(&StockLevel{}).
			Where("branch_id = ? AND variant_id = ? AND qty >= ?", branchId, variantId, qty).
			Updates(map[string]interface{}{
				"qty":      gorm.Expr("qty - ?", qty),
				"reserved": gorm.Expr("reserved - ?", qty),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: stock branch %d variant %d requested %d",
				utils.ErrInsufficientStock, branchId, variantId, qty)
		}
		return nil
	}
}
