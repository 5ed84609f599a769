package models

import (
	"errors"
	"fmt"
	"time"

	"bitbucket.org/movilfix/taller_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Sale struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BranchId   int             `gorm:"index;not null" json:"branch_id"`
	Folio      string          `gorm:"size:40;uniqueIndex" json:"folio"`
	CustomerId *int            `gorm:"index" json:"customer_id"`
	TicketId   *int            `gorm:"index" json:"ticket_id"`
	Status     SaleStatus      `gorm:"type:varchar(12);not null;index" json:"status"`
	Subtotal   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"subtotal"`
	Discount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	Total      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total"`
	UserId     int             `gorm:"not null" json:"user_id"`
	Lines      []SaleLine      `gorm:"foreignKey:SaleId" json:"lines"`
	Payments   []Payment       `gorm:"foreignKey:SaleId" json:"payments"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// SaleLine rows are immutable once the sale is created.
type SaleLine struct {
	ID          int             `gorm:"primary_key" json:"id"`
	SaleId      int             `gorm:"index;not null" json:"sale_id"`
	VariantId   *int            `gorm:"index" json:"variant_id"`
	Description string          `gorm:"size:255;not null" json:"description"`
	Qty         int             `gorm:"not null" json:"qty"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Discount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	Total       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Payment is append-only money received against a sale.
type Payment struct {
	ID        int             `gorm:"primary_key" json:"id"`
	SaleId    int             `gorm:"index;not null" json:"sale_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Method    PaymentMethod   `gorm:"type:varchar(15);not null" json:"method"`
	Reference string          `gorm:"size:80" json:"reference"`
	UserId    int             `gorm:"not null" json:"user_id"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TotalPaid sums the sale's recorded payments.
func (s *Sale) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// GetSale loads a sale with lines and payments, org-scoped via the branch.
func GetSale(db *gorm.DB, organizationId string, id int) (*Sale, error) {
	var sale Sale
	err := db.Where("id = ? AND branch_id IN (?)", id, branchScope(db, organizationId)).
		Preload("Lines").
		Preload("Payments").
		First(&sale).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sale %d", utils.ErrNotFound, id)
		}
		return nil, err
	}
	return &sale, nil
}

// SaleFilter narrows ListSales.
type SaleFilter struct {
	BranchId   *int
	CustomerId *int
	TicketId   *int
	Status     *SaleStatus
	StartDate  *time.Time
	EndDate    *time.Time
}

func ListSales(db *gorm.DB, organizationId string, filter SaleFilter, page utils.Pagination) ([]Sale, int64, error) {
	query := db.Model(&Sale{}).
		Where("branch_id IN (?)", branchScope(db, organizationId))

	if filter.BranchId != nil {
		query = query.Where("branch_id = ?", *filter.BranchId)
	}
	if filter.CustomerId != nil {
		query = query.Where("customer_id = ?", *filter.CustomerId)
	}
	if filter.TicketId != nil {
		query = query.Where("ticket_id = ?", *filter.TicketId)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sales []Sale
	err := query.Preload("Lines").Preload("Payments").
		Order("created_at DESC").
		Offset(page.Offset()).Limit(page.PageSize).
		Find(&sales).Error
	if err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}

// ListPaidSalesForTicket returns the settled sales linked to a ticket with
// their payments, for the delivery payment gate.
func ListPaidSalesForTicket(db *gorm.DB, ticketId int) ([]Sale, error) {
	var sales []Sale
	err := db.Where("ticket_id = ? AND status = ?", ticketId, SaleStatusPaid).
		Preload("Payments").
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}

// ListPaidSalesForDay returns the branch's settled sales inside [from, to]
// with payments, for the cash-cut aggregation.
func ListPaidSalesForDay(db *gorm.DB, branchId int, from, to time.Time) ([]Sale, error) {
	var sales []Sale
	err := db.Where("branch_id = ? AND status = ? AND created_at >= ? AND created_at <= ?",
		branchId, SaleStatusPaid, from, to).
		Preload("Payments").
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}
