package workflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bitbucket.org/movilfix/taller_backend/models"
	"bitbucket.org/movilfix/taller_backend/utils"
	"bitbucket.org/movilfix/taller_backend/workflow"
	"github.com/shopspring/decimal"
)

func TestCreateSaleComputesTotals(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	ctx := context.Background()

	sale, err := workflow.CreateSale(ctx, db, quietLogger(), orgId, workflow.NewSale{
		BranchId: branch.ID,
		Lines: []workflow.NewSaleLine{
			{Description: "Funda", Qty: 2, UnitPrice: decimal.NewFromInt(100)},
			{Description: "Mica", Qty: 3, UnitPrice: decimal.NewFromInt(100), Discount: decimal.NewFromInt(50)},
		},
		Discount: decimal.NewFromInt(30),
		UserId:   1,
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	if !strings.HasPrefix(sale.Folio, "VTA-MTY-") {
		t.Fatalf("folio = %q, want VTA-MTY- prefix", sale.Folio)
	}
	if sale.Status != models.SaleStatusPending {
		t.Fatalf("status = %s, want PENDIENTE", sale.Status)
	}
	// 2*100 + (3*100 - 50) = 450; 450 - 30 = 420.
	if !sale.Subtotal.Equal(decimal.NewFromInt(450)) {
		t.Fatalf("subtotal = %s, want 450", sale.Subtotal)
	}
	if !sale.Total.Equal(decimal.NewFromInt(420)) {
		t.Fatalf("total = %s, want 420", sale.Total)
	}
	if len(sale.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(sale.Lines))
	}
}

func TestAddPaymentFlipsStatusExactlyAtTotal(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	ctx := context.Background()
	logger := quietLogger()

	sale, err := workflow.CreateSale(ctx, db, logger, orgId, workflow.NewSale{
		BranchId: branch.ID,
		Lines:    []workflow.NewSaleLine{{Description: "Servicio", Qty: 1, UnitPrice: decimal.NewFromInt(500)}},
		UserId:   1,
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	if _, err := workflow.AddPayment(ctx, db, logger, orgId, sale.ID, workflow.NewPayment{
		Amount: decimal.NewFromInt(200), Method: models.PaymentMethodCash,
	}, 1); err != nil {
		t.Fatalf("AddPayment 200: %v", err)
	}
	loaded, _ := models.GetSale(db, orgId, sale.ID)
	if loaded.Status != models.SaleStatusPending {
		t.Fatalf("status after partial payment = %s, want PENDIENTE", loaded.Status)
	}

	if _, err := workflow.AddPayment(ctx, db, logger, orgId, sale.ID, workflow.NewPayment{
		Amount: decimal.NewFromInt(300), Method: models.PaymentMethodCard,
	}, 1); err != nil {
		t.Fatalf("AddPayment 300: %v", err)
	}
	loaded, _ = models.GetSale(db, orgId, sale.ID)
	if loaded.Status != models.SaleStatusPaid {
		t.Fatalf("status after full payment = %s, want PAGADO", loaded.Status)
	}
	if !loaded.TotalPaid().Equal(decimal.NewFromInt(500)) {
		t.Fatalf("total paid = %s, want 500", loaded.TotalPaid())
	}

	// The balance is zero; any further payment must be refused.
	_, err = workflow.AddPayment(ctx, db, logger, orgId, sale.ID, workflow.NewPayment{
		Amount: decimal.NewFromInt(1), Method: models.PaymentMethodCash,
	}, 1)
	if !errors.Is(err, utils.ErrPaymentExceedsBalance) {
		t.Fatalf("err = %v, want ErrPaymentExceedsBalance", err)
	}
}

func TestAddPaymentRejectsOverpayment(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	ctx := context.Background()
	logger := quietLogger()

	sale, err := workflow.CreateSale(ctx, db, logger, orgId, workflow.NewSale{
		BranchId: branch.ID,
		Lines:    []workflow.NewSaleLine{{Description: "Servicio", Qty: 1, UnitPrice: decimal.NewFromInt(100)}},
		UserId:   1,
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	_, err = workflow.AddPayment(ctx, db, logger, orgId, sale.ID, workflow.NewPayment{
		Amount: decimal.NewFromInt(150), Method: models.PaymentMethodCash,
	}, 1)
	if !errors.Is(err, utils.ErrPaymentExceedsBalance) {
		t.Fatalf("err = %v, want ErrPaymentExceedsBalance", err)
	}

	loaded, _ := models.GetSale(db, orgId, sale.ID)
	if len(loaded.Payments) != 0 {
		t.Fatalf("rejected payment persisted: %d rows", len(loaded.Payments))
	}
}

func TestAddPaymentValidatesInput(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	ctx := context.Background()
	logger := quietLogger()

	sale, err := workflow.CreateSale(ctx, db, logger, orgId, workflow.NewSale{
		BranchId: branch.ID,
		Lines:    []workflow.NewSaleLine{{Description: "Servicio", Qty: 1, UnitPrice: decimal.NewFromInt(100)}},
		UserId:   1,
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	if _, err := workflow.AddPayment(ctx, db, logger, orgId, sale.ID, workflow.NewPayment{
		Amount: decimal.NewFromInt(50), Method: "BITCOIN",
	}, 1); err == nil {
		t.Fatal("invalid method accepted")
	}
	if _, err := workflow.AddPayment(ctx, db, logger, orgId, sale.ID, workflow.NewPayment{
		Amount: decimal.Zero, Method: models.PaymentMethodCash,
	}, 1); err == nil {
		t.Fatal("zero amount accepted")
	}
}

func TestSeedPaymentSettlesSaleAndMovesStock(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	variant := seedVariant(t, db, orgId, "FUN-GEN", 150)
	ctx := context.Background()

	mustApplyMovement(t, ctx, db, orgId, workflow.NewMovement{
		BranchId: branch.ID, VariantId: variant.ID, Type: models.MovementTypeInbound, Qty: 10, UserId: 1,
	})

	variantId := variant.ID
	sale, err := workflow.CreateSale(ctx, db, quietLogger(), orgId, workflow.NewSale{
		BranchId: branch.ID,
		Lines: []workflow.NewSaleLine{
			{VariantId: &variantId, Description: "Funda genérica", Qty: 2, UnitPrice: decimal.NewFromInt(150)},
		},
		Payment: &workflow.NewPayment{Amount: decimal.NewFromInt(300), Method: models.PaymentMethodCash},
		UserId:  1,
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	if sale.Status != models.SaleStatusPaid {
		t.Fatalf("status = %s, want PAGADO from seed payment", sale.Status)
	}
	if len(sale.Payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(sale.Payments))
	}

	stock, _ := models.GetStockLevel(db, branch.ID, variant.ID)
	if stock.Qty != 8 {
		t.Fatalf("qty = %d, want 8 after selling 2", stock.Qty)
	}

	var movement models.Movement
	err = db.Where("folio = ? AND type = ?", sale.Folio, models.MovementTypeSale).First(&movement).Error
	if err != nil {
		t.Fatalf("sale movement missing under folio %s: %v", sale.Folio, err)
	}
	if movement.Qty != 2 {
		t.Fatalf("movement qty = %d, want 2", movement.Qty)
	}
}

func TestCashSeedPaymentOnTicketIncrementsAdvance(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	ctx := context.Background()
	logger := quietLogger()

	ticket, err := workflow.CreateTicket(ctx, db, logger, orgId, workflow.NewTicket{
		BranchId: branch.ID, CustomerName: "Ana López", Device: "Laptop", Problem: "No enciende", UserId: 1,
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	ticketId := ticket.ID
	_, err = workflow.CreateSale(ctx, db, logger, orgId, workflow.NewSale{
		BranchId: branch.ID,
		TicketId: &ticketId,
		Lines:    []workflow.NewSaleLine{{Description: "Anticipo reparación", Qty: 1, UnitPrice: decimal.NewFromInt(300)}},
		Payment:  &workflow.NewPayment{Amount: decimal.NewFromInt(300), Method: models.PaymentMethodCash},
		UserId:   1,
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	loaded, err := models.GetTicket(db, orgId, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if !loaded.AdvancePayment.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("advance = %s, want 300", loaded.AdvancePayment)
	}
}

func TestCreateSaleRejectsEmptyAndBadLines(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	ctx := context.Background()
	logger := quietLogger()

	if _, err := workflow.CreateSale(ctx, db, logger, orgId, workflow.NewSale{
		BranchId: branch.ID, UserId: 1,
	}); err == nil {
		t.Fatal("empty sale accepted")
	}
	if _, err := workflow.CreateSale(ctx, db, logger, orgId, workflow.NewSale{
		BranchId: branch.ID,
		Lines:    []workflow.NewSaleLine{{Description: "X", Qty: 0, UnitPrice: decimal.NewFromInt(10)}},
		UserId:   1,
	}); err == nil {
		t.Fatal("zero-qty line accepted")
	}
}
