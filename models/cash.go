package models

import (
	"errors"
	"fmt"
	"time"

	"bitbucket.org/movilfix/taller_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CashRegister struct {
	ID        int       `gorm:"primary_key" json:"id"`
	BranchId  int       `gorm:"index;not null" json:"branch_id"`
	Code      string    `gorm:"size:20;not null" json:"code"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CashCut is the immutable daily settlement snapshot for one register. The
// only correction mechanism is a later cut with manual adjustments.
type CashCut struct {
	ID             int             `gorm:"primary_key" json:"id"`
	CashRegisterId int             `gorm:"index;not null" json:"cash_register_id"`
	BranchId       int             `gorm:"index;not null" json:"branch_id"`
	Date           time.Time       `gorm:"not null;index" json:"date"`
	InitialAmount  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"initial_amount"`
	SalesCash      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sales_cash"`
	SalesCard      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sales_card"`
	SalesTransfer  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sales_transfer"`
	Advances       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"advances"`
	Adjustments    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"adjustments"`
	TotalIncome    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_income"`
	FinalAmount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"final_amount"`
	Notes          string          `gorm:"size:500" json:"notes"`
	UserId         int             `gorm:"not null" json:"user_id"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func GetCashRegister(db *gorm.DB, organizationId string, id int) (*CashRegister, error) {
	var register CashRegister
	err := db.Where("id = ? AND branch_id IN (?)", id, branchScope(db, organizationId)).
		First(&register).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: cash register %d", utils.ErrNotFound, id)
		}
		return nil, err
	}
	return &register, nil
}

func ListCashRegisters(db *gorm.DB, organizationId string, branchId int) ([]CashRegister, error) {
	var registers []CashRegister
	err := db.Where("branch_id = ? AND branch_id IN (?)", branchId, branchScope(db, organizationId)).
		Order("code").
		Find(&registers).Error
	if err != nil {
		return nil, err
	}
	return registers, nil
}

// GetPriorCashCut returns the most recent cut strictly before date for a
// register, or nil when none exists. Its FinalAmount seeds the next cut.
func GetPriorCashCut(db *gorm.DB, cashRegisterId int, date time.Time) (*CashCut, error) {
	var cut CashCut
	err := db.Where("cash_register_id = ? AND date < ?", cashRegisterId, date).
		Order("date DESC").
		First(&cut).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cut, nil
}

// CashCutFilter narrows ListCashCuts.
type CashCutFilter struct {
	CashRegisterId *int
	StartDate      *time.Time
	EndDate        *time.Time
}

func ListCashCuts(db *gorm.DB, organizationId string, branchId int, filter CashCutFilter, page utils.Pagination) ([]CashCut, int64, error) {
	query := db.Model(&CashCut{}).
		Where("branch_id = ? AND branch_id IN (?)", branchId, branchScope(db, organizationId))

	if filter.CashRegisterId != nil {
		query = query.Where("cash_register_id = ?", *filter.CashRegisterId)
	}
	if filter.StartDate != nil {
		query = query.Where("date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("date <= ?", *filter.EndDate)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var cuts []CashCut
	err := query.Order("date DESC").
		Offset(page.Offset()).Limit(page.PageSize).
		Find(&cuts).Error
	if err != nil {
		return nil, 0, err
	}
	return cuts, total, nil
}
