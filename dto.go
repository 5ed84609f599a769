package main

import (
	"time"

	"bitbucket.org/movilfix/taller_backend/models"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func init() {
	// Enum validators for request binding.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("movementtype", func(fl validator.FieldLevel) bool {
			return models.MovementType(fl.Field().String()).IsValid()
		})
		v.RegisterValidation("paymentmethod", func(fl validator.FieldLevel) bool {
			return models.PaymentMethod(fl.Field().String()).IsValid()
		})
		v.RegisterValidation("ticketstate", func(fl validator.FieldLevel) bool {
			return models.TicketState(fl.Field().String()).IsValid()
		})
	}
}

type createMovementRequest struct {
	BranchId  int    `json:"branch_id" binding:"required"`
	VariantId int    `json:"variant_id" binding:"required"`
	Type      string `json:"type" binding:"required,movementtype"`
	Qty       int    `json:"qty" binding:"required"`
	Reason    string `json:"reason"`
	Folio     string `json:"folio"`
	TicketId  *int   `json:"ticket_id"`
}

type createTicketRequest struct {
	BranchId      int             `json:"branch_id" binding:"required"`
	CustomerName  string          `json:"customer_name" binding:"required"`
	CustomerPhone string          `json:"customer_phone"`
	CustomerEmail string          `json:"customer_email" binding:"omitempty,email"`
	Device        string          `json:"device" binding:"required"`
	Brand         string          `json:"brand"`
	Model         string          `json:"model"`
	SerialNumber  string          `json:"serial_number"`
	Problem       string          `json:"problem" binding:"required"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	EstimatedTime string          `json:"estimated_time"`
}

type updateTicketRequest struct {
	CustomerName  *string          `json:"customer_name"`
	CustomerPhone *string          `json:"customer_phone"`
	CustomerEmail *string          `json:"customer_email"`
	Device        *string          `json:"device"`
	Brand         *string          `json:"brand"`
	Model         *string          `json:"model"`
	SerialNumber  *string          `json:"serial_number"`
	Problem       *string          `json:"problem"`
	Diagnosis     *string          `json:"diagnosis"`
	Solution      *string          `json:"solution"`
	EstimatedCost *decimal.Decimal `json:"estimated_cost"`
	FinalCost     *decimal.Decimal `json:"final_cost"`
	EstimatedTime *string          `json:"estimated_time"`
	WarrantyDays  *int             `json:"warranty_days"`
	InternalNotes *string          `json:"internal_notes"`
}

type updateTicketStateRequest struct {
	State          string           `json:"state" binding:"required,ticketstate"`
	Notes          string           `json:"notes"`
	Diagnosis      *string          `json:"diagnosis"`
	Solution       *string          `json:"solution"`
	EstimatedCost  *decimal.Decimal `json:"estimated_cost"`
	FinalCost      *decimal.Decimal `json:"final_cost"`
	AdvancePayment *decimal.Decimal `json:"advance_payment"`
	InternalNotes  *string          `json:"internal_notes"`
}

type addTicketPartRequest struct {
	VariantId int `json:"variant_id" binding:"required"`
	Qty       int `json:"qty" binding:"required,gt=0"`
}

type saleLineRequest struct {
	VariantId   *int            `json:"variant_id"`
	Description string          `json:"description" binding:"required"`
	Qty         int             `json:"qty" binding:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
}

type paymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" binding:"required,paymentmethod"`
	Reference string          `json:"reference"`
}

type createSaleRequest struct {
	BranchId   int               `json:"branch_id" binding:"required"`
	CustomerId *int              `json:"customer_id"`
	TicketId   *int              `json:"ticket_id"`
	Lines      []saleLineRequest `json:"lines" binding:"required,min=1,dive"`
	Discount   decimal.Decimal   `json:"discount"`
	Payment    *paymentRequest   `json:"payment"`
}

type createCashRegisterRequest struct {
	BranchId int    `json:"branch_id" binding:"required"`
	Code     string `json:"code" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

type createCashCutRequest struct {
	CashRegisterId int              `json:"cash_register_id" binding:"required"`
	BranchId       int              `json:"branch_id" binding:"required"`
	Date           time.Time        `json:"date" binding:"required"`
	InitialAmount  *decimal.Decimal `json:"initial_amount"`
	Adjustments    decimal.Decimal  `json:"adjustments"`
	Notes          string           `json:"notes"`
}
