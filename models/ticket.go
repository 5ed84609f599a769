package models

import (
	"errors"
	"fmt"
	"time"

	"bitbucket.org/movilfix/taller_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Ticket struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BranchId       int             `gorm:"index;not null" json:"branch_id"`
	Folio          string          `gorm:"size:40;uniqueIndex" json:"folio"`
	CustomerName   string          `gorm:"size:150;not null" json:"customer_name"`
	CustomerPhone  string          `gorm:"size:30" json:"customer_phone"`
	CustomerEmail  string          `gorm:"size:150" json:"customer_email"`
	Device         string          `gorm:"size:100;not null" json:"device"`
	Brand          string          `gorm:"size:60" json:"brand"`
	Model          string          `gorm:"size:60" json:"model"`
	SerialNumber   string          `gorm:"size:80" json:"serial_number"`
	Problem        string          `gorm:"size:500;not null" json:"problem"`
	Diagnosis      string          `gorm:"size:500" json:"diagnosis"`
	Solution       string          `gorm:"size:500" json:"solution"`
	State          TicketState     `gorm:"type:varchar(20);not null;index" json:"state"`
	EstimatedCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"estimated_cost"`
	FinalCost      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"final_cost"`
	AdvancePayment decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"advance_payment"`
	EstimatedTime  string          `gorm:"size:60" json:"estimated_time"`
	WarrantyDays   int             `gorm:"default:0" json:"warranty_days"`
	InternalNotes  string          `gorm:"size:500" json:"internal_notes"`
	UserId         int             `gorm:"not null" json:"user_id"`
	Parts          []TicketPart    `gorm:"foreignKey:TicketId" json:"parts"`
	History        []TicketHistory `gorm:"foreignKey:TicketId" json:"history"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TicketPart is a pledge of stock to a ticket. State moves one way only:
// RESERVADA -> CONSUMIDA or RESERVADA -> LIBERADA; a part is never
// re-reserved.
type TicketPart struct {
	ID        int             `gorm:"primary_key" json:"id"`
	TicketId  int             `gorm:"index;not null" json:"ticket_id"`
	VariantId int             `gorm:"index;not null" json:"variant_id"`
	Qty       int             `gorm:"not null" json:"qty"`
	State     TicketPartState `gorm:"type:varchar(20);not null" json:"state"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TicketHistory is the append-only transition audit row.
type TicketHistory struct {
	ID        int          `gorm:"primary_key" json:"id"`
	TicketId  int          `gorm:"index;not null" json:"ticket_id"`
	FromState *TicketState `gorm:"type:varchar(20)" json:"from_state"`
	ToState   TicketState  `gorm:"type:varchar(20);not null" json:"to_state"`
	Notes     string       `gorm:"size:500" json:"notes"`
	UserId    int          `gorm:"not null" json:"user_id"`
	Ip        string       `gorm:"size:45" json:"ip"`
	UserAgent string       `gorm:"size:255" json:"user_agent"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

// ticketTransitions is the workflow edge table. Delivery and cancellation are
// terminal.
var ticketTransitions = map[TicketState][]TicketState{
	TicketStateReceived:     {TicketStateDiagnosing, TicketStateCancelled},
	TicketStateDiagnosing:   {TicketStateAwaitingPart, TicketStateInRepair, TicketStateCancelled},
	TicketStateAwaitingPart: {TicketStateInRepair, TicketStateCancelled},
	TicketStateInRepair:     {TicketStateRepaired, TicketStateCancelled},
	TicketStateRepaired:     {TicketStateDelivered},
	TicketStateDelivered:    {},
	TicketStateCancelled:    {},
}

// CanTransition reports whether from -> to is an edge of the workflow table.
func CanTransition(from, to TicketState) bool {
	for _, allowed := range ticketTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// GetTicket loads a ticket with parts, scoped to the caller's organization
// through the owning branch.
func GetTicket(db *gorm.DB, organizationId string, id int) (*Ticket, error) {
	var ticket Ticket
	err := db.Where("id = ? AND branch_id IN (?)", id, branchScope(db, organizationId)).
		Preload("Parts").
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: ticket %d", utils.ErrNotFound, id)
		}
		return nil, err
	}
	return &ticket, nil
}

// GetTicketWithHistory additionally loads the audit trail, newest first.
func GetTicketWithHistory(db *gorm.DB, organizationId string, id int) (*Ticket, error) {
	var ticket Ticket
	err := db.Where("id = ? AND branch_id IN (?)", id, branchScope(db, organizationId)).
		Preload("Parts").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("ticket_histories.created_at DESC")
		}).
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: ticket %d", utils.ErrNotFound, id)
		}
		return nil, err
	}
	return &ticket, nil
}

// TicketFilter narrows ListTickets.
type TicketFilter struct {
	State *TicketState
	Query string
}

func ListTickets(db *gorm.DB, organizationId string, branchId int, filter TicketFilter, page utils.Pagination) ([]Ticket, int64, error) {
	query := db.Model(&Ticket{}).
		Where("branch_id = ? AND branch_id IN (?)", branchId, branchScope(db, organizationId))

	if filter.State != nil {
		query = query.Where("state = ?", *filter.State)
	}
	if filter.Query != "" {
		pattern := utils.LikePattern(filter.Query)
		query = query.Where("folio LIKE ? OR customer_name LIKE ? OR device LIKE ? OR problem LIKE ?",
			pattern, pattern, pattern, pattern)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tickets []Ticket
	err := query.Preload("Parts").
		Order("created_at DESC").
		Offset(page.Offset()).Limit(page.PageSize).
		Find(&tickets).Error
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}
