package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/movilfix/taller_backend/config"
	"bitbucket.org/movilfix/taller_backend/models"
	"bitbucket.org/movilfix/taller_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const saleFolioPrefix = "VTA"

// NewSaleLine is one line of a new sale. VariantId is nil for services and
// other non-stock items.
type NewSaleLine struct {
	VariantId   *int
	Description string
	Qty         int
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
}

// NewPayment seeds a payment at sale creation or adds one later.
type NewPayment struct {
	Amount    decimal.Decimal
	Method    models.PaymentMethod
	Reference string
}

// NewSale is the input for CreateSale.
type NewSale struct {
	BranchId   int
	CustomerId *int
	TicketId   *int
	Lines      []NewSaleLine
	Discount   decimal.Decimal
	Payment    *NewPayment
	UserId     int
}

// CreateSale opens a sale with immutable lines and computed totals
// (subtotal = Σ qty×unitPrice − lineDiscount; total = subtotal − discount).
// When a seed payment is supplied the sale is settled immediately: the payment
// and the PAGADO status land in one batch, a cash payment on a ticket-linked
// sale increments the ticket's advance, and each stocked line applies a VTA
// movement under the sale's folio. The movements are best-effort side effects:
// one failing (insufficient stock) is logged and does not undo the sale.
func CreateSale(ctx context.Context, db *gorm.DB, logger *logrus.Logger, organizationId string, input NewSale) (*models.Sale, error) {
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("sale requires at least one line")
	}
	if _, err := models.GetBranch(db.WithContext(ctx), organizationId, input.BranchId); err != nil {
		return nil, err
	}
	if input.TicketId != nil {
		if _, err := models.GetTicket(db.WithContext(ctx), organizationId, *input.TicketId); err != nil {
			return nil, err
		}
	}

	folio, err := NextFolio(ctx, db, logger, organizationId, saleFolioPrefix, input.BranchId)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	lines := make([]models.SaleLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.Qty <= 0 {
			return nil, fmt.Errorf("line qty must be positive")
		}
		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))).Sub(line.Discount)
		subtotal = subtotal.Add(lineTotal)
		lines = append(lines, models.SaleLine{
			VariantId:   line.VariantId,
			Description: line.Description,
			Qty:         line.Qty,
			UnitPrice:   line.UnitPrice,
			Discount:    line.Discount,
			Total:       lineTotal,
		})
	}
	total := subtotal.Sub(input.Discount)

	sale := &models.Sale{
		BranchId:   input.BranchId,
		Folio:      folio,
		CustomerId: input.CustomerId,
		TicketId:   input.TicketId,
		Status:     models.SaleStatusPending,
		Subtotal:   subtotal,
		Discount:   input.Discount,
		Total:      total,
		UserId:     input.UserId,
		Lines:      lines,
	}

	if err := db.WithContext(ctx).Create(sale).Error; err != nil {
		config.LogError(logger, "saleWorkflow.go", "CreateSale", "Create", folio, err)
		return nil, err
	}

	if input.Payment != nil {
		if err := settleSeedPayment(ctx, db, logger, organizationId, sale, input); err != nil {
			return nil, err
		}
	}

	return models.GetSale(db.WithContext(ctx), organizationId, sale.ID)
}

func settleSeedPayment(ctx context.Context, db *gorm.DB, logger *logrus.Logger, organizationId string, sale *models.Sale, input NewSale) error {
	payment := &models.Payment{
		SaleId:    sale.ID,
		Amount:    input.Payment.Amount,
		Method:    input.Payment.Method,
		Reference: input.Payment.Reference,
		UserId:    input.UserId,
	}

	err := models.ApplyBatch(db.WithContext(ctx),
		func(tx *gorm.DB) error { return tx.Create(payment).Error },
		func(tx *gorm.DB) error {
			return tx.Model(&models.Sale{}).Where("id = ?", sale.ID).
				Update("status", models.SaleStatusPaid).Error
		},
	)
	if err != nil {
		config.LogError(logger, "saleWorkflow.go", "settleSeedPayment", "ApplyBatch", sale.ID, err)
		return err
	}
	PaymentsRecordedTotal.WithLabelValues(string(input.Payment.Method)).Inc()

	// A cash payment against a ticket-linked sale is an advance on the repair.
	if input.TicketId != nil && input.Payment.Method == models.PaymentMethodCash {
		err = db.WithContext(ctx).Model(&models.Ticket{}).
			Where("id = ?", *input.TicketId).
			Update("advance_payment", gorm.Expr("advance_payment + ?", input.Payment.Amount)).Error
		if err != nil {
			config.LogError(logger, "saleWorkflow.go", "settleSeedPayment", "IncrementAdvance", *input.TicketId, err)
			return err
		}
	}

	// Stocked lines leave the shelf under the sale's folio. Best effort: a
	// denied line is logged, the sale stands.
	for _, line := range input.Lines {
		if line.VariantId == nil {
			continue
		}
		_, merr := ApplyMovement(ctx, db, logger, organizationId, NewMovement{
			BranchId:  input.BranchId,
			VariantId: *line.VariantId,
			Type:      models.MovementTypeSale,
			Qty:       line.Qty,
			Reason:    fmt.Sprintf("Venta %s", sale.Folio),
			Folio:     sale.Folio,
			UserId:    input.UserId,
		})
		if merr != nil {
			config.LogError(logger, "saleWorkflow.go", "settleSeedPayment", "ApplyMovement", *line.VariantId, merr)
		}
	}
	return nil
}

// AddPayment records money against a sale. The amount must not exceed the
// remaining balance; the payment row and the derived status land in one atomic
// batch, flipping the sale to PAGADO exactly when cumulative payments reach
// the total.
func AddPayment(ctx context.Context, db *gorm.DB, logger *logrus.Logger, organizationId string, saleId int, input NewPayment, userId int) (*models.Payment, error) {
	if !input.Method.IsValid() {
		return nil, fmt.Errorf("invalid payment method %q", input.Method)
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive")
	}

	sale, err := models.GetSale(db.WithContext(ctx), organizationId, saleId)
	if err != nil {
		return nil, err
	}

	totalPaid := sale.TotalPaid()
	remaining := sale.Total.Sub(totalPaid)
	if input.Amount.GreaterThan(remaining) {
		return nil, fmt.Errorf("%w: amount %s, remaining %s", utils.ErrPaymentExceedsBalance, input.Amount, remaining)
	}

	newStatus := models.SaleStatusPending
	if totalPaid.Add(input.Amount).GreaterThanOrEqual(sale.Total) {
		newStatus = models.SaleStatusPaid
	}

	payment := &models.Payment{
		SaleId:    sale.ID,
		Amount:    input.Amount,
		Method:    input.Method,
		Reference: input.Reference,
		UserId:    userId,
	}

	err = models.ApplyBatch(db.WithContext(ctx),
		func(tx *gorm.DB) error { return tx.Create(payment).Error },
		func(tx *gorm.DB) error {
			return tx.Model(&models.Sale{}).Where("id = ?", sale.ID).
				Update("status", newStatus).Error
		},
	)
	if err != nil {
		config.LogError(logger, "saleWorkflow.go", "AddPayment", "ApplyBatch", saleId, err)
		return nil, err
	}
	PaymentsRecordedTotal.WithLabelValues(string(input.Method)).Inc()
	return payment, nil
}
