package workflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bitbucket.org/movilfix/taller_backend/models"
	"bitbucket.org/movilfix/taller_backend/utils"
	"bitbucket.org/movilfix/taller_backend/workflow"
	"gorm.io/gorm"
)

func TestApplyMovementInboundCreatesStockLazily(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	variant := seedVariant(t, db, orgId, "PAN-IP13", 2500)
	ctx := context.Background()

	movement, err := workflow.ApplyMovement(ctx, db, quietLogger(), orgId, workflow.NewMovement{
		BranchId:  branch.ID,
		VariantId: variant.ID,
		Type:      models.MovementTypeInbound,
		Qty:       10,
		Reason:    "Compra proveedor",
		UserId:    1,
	})
	if err != nil {
		t.Fatalf("ApplyMovement ING: %v", err)
	}
	if !strings.HasPrefix(movement.Folio, "ING-MTY-") {
		t.Fatalf("folio = %q, want ING-MTY- prefix", movement.Folio)
	}

	stock, err := models.GetStockLevel(db, branch.ID, variant.ID)
	if err != nil {
		t.Fatalf("GetStockLevel: %v", err)
	}
	if stock.Qty != 10 || stock.Reserved != 0 {
		t.Fatalf("stock = qty %d reserved %d, want 10/0", stock.Qty, stock.Reserved)
	}
}

func TestApplyMovementOutboundDecrements(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	variant := seedVariant(t, db, orgId, "BAT-S21", 900)
	ctx := context.Background()
	logger := quietLogger()

	mustApplyMovement(t, ctx, db, orgId, workflow.NewMovement{
		BranchId: branch.ID, VariantId: variant.ID, Type: models.MovementTypeInbound, Qty: 10, UserId: 1,
	})
	_, err := workflow.ApplyMovement(ctx, db, logger, orgId, workflow.NewMovement{
		BranchId: branch.ID, VariantId: variant.ID, Type: models.MovementTypeOutbound, Qty: 4, Reason: "Merma", UserId: 1,
	})
	if err != nil {
		t.Fatalf("ApplyMovement EGR: %v", err)
	}

	stock, err := models.GetStockLevel(db, branch.ID, variant.ID)
	if err != nil {
		t.Fatalf("GetStockLevel: %v", err)
	}
	if stock.Qty != 6 {
		t.Fatalf("qty = %d, want 6", stock.Qty)
	}

	var count int64
	db.Model(&models.Movement{}).Where("variant_id = ?", variant.ID).Count(&count)
	if count != 2 {
		t.Fatalf("movement rows = %d, want 2", count)
	}
}

func TestApplyMovementInsufficientStockWritesNothing(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	variant := seedVariant(t, db, orgId, "MIC-USB-C", 350)
	ctx := context.Background()

	_, err := workflow.ApplyMovement(ctx, db, quietLogger(), orgId, workflow.NewMovement{
		BranchId: branch.ID, VariantId: variant.ID, Type: models.MovementTypeOutbound, Qty: 5, UserId: 1,
	})
	if !errors.Is(err, utils.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	var count int64
	db.Model(&models.Movement{}).Count(&count)
	if count != 0 {
		t.Fatalf("movement rows = %d, want 0 after denied outbound", count)
	}
	if _, err := models.GetStockLevel(db, branch.ID, variant.ID); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("stock row exists after denied outbound: %v", err)
	}
}

func TestApplyMovementPropagatesStockReadFailure(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	variant := seedVariant(t, db, orgId, "BAT-S21", 900)
	ctx := context.Background()

	// Break the counter table so the availability read fails with something
	// other than a missing row. That failure must surface as-is, not be
	// reported as an out-of-stock denial.
	if err := db.Migrator().DropTable(&models.StockLevel{}); err != nil {
		t.Fatalf("DropTable: %v", err)
	}

	_, err := workflow.ApplyMovement(ctx, db, quietLogger(), orgId, workflow.NewMovement{
		BranchId: branch.ID, VariantId: variant.ID, Type: models.MovementTypeOutbound, Qty: 1, UserId: 1,
	})
	if err == nil {
		t.Fatal("outbound succeeded against a broken counter table")
	}
	if errors.Is(err, utils.ErrInsufficientStock) {
		t.Fatalf("read failure reported as ErrInsufficientStock: %v", err)
	}
}

func TestApplyMovementSignedAdjustment(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	variant := seedVariant(t, db, orgId, "FUN-GEN", 150)
	ctx := context.Background()
	logger := quietLogger()

	mustApplyMovement(t, ctx, db, orgId, workflow.NewMovement{
		BranchId: branch.ID, VariantId: variant.ID, Type: models.MovementTypeInbound, Qty: 10, UserId: 1,
	})

	// Negative adjustment takes stock out; the audit row stores the magnitude.
	movement, err := workflow.ApplyMovement(ctx, db, logger, orgId, workflow.NewMovement{
		BranchId: branch.ID, VariantId: variant.ID, Type: models.MovementTypeAdjustment, Qty: -3, Reason: "Conteo físico", UserId: 1,
	})
	if err != nil {
		t.Fatalf("ApplyMovement AJU -3: %v", err)
	}
	if movement.Qty != 3 {
		t.Fatalf("stored qty = %d, want magnitude 3", movement.Qty)
	}

	mustApplyMovement(t, ctx, db, orgId, workflow.NewMovement{
		BranchId: branch.ID, VariantId: variant.ID, Type: models.MovementTypeAdjustment, Qty: 5, UserId: 1,
	})

	stock, err := models.GetStockLevel(db, branch.ID, variant.ID)
	if err != nil {
		t.Fatalf("GetStockLevel: %v", err)
	}
	if stock.Qty != 12 {
		t.Fatalf("qty = %d, want 12 after 10-3+5", stock.Qty)
	}
}

func TestApplyMovementTransferRouting(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	other := seedSecondBranch(t, db, orgId)
	variant := seedVariant(t, db, orgId, "PAN-IP13", 2500)
	ctx := context.Background()

	mustApplyMovement(t, ctx, db, orgId, workflow.NewMovement{
		BranchId: branch.ID, VariantId: variant.ID, Type: models.MovementTypeInbound, Qty: 8, UserId: 1,
	})
	mustApplyMovement(t, ctx, db, orgId, workflow.NewMovement{
		BranchId: branch.ID, VariantId: variant.ID, Type: models.MovementTypeTransferOut, Qty: 3, UserId: 1,
	})
	mustApplyMovement(t, ctx, db, orgId, workflow.NewMovement{
		BranchId: other.ID, VariantId: variant.ID, Type: models.MovementTypeTransferIn, Qty: 3, UserId: 1,
	})

	source, _ := models.GetStockLevel(db, branch.ID, variant.ID)
	dest, _ := models.GetStockLevel(db, other.ID, variant.ID)
	if source.Qty != 5 {
		t.Fatalf("source qty = %d, want 5", source.Qty)
	}
	if dest.Qty != 3 {
		t.Fatalf("dest qty = %d, want 3", dest.Qty)
	}
}

func TestApplyMovementRejectsBadQty(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	variant := seedVariant(t, db, orgId, "BAT-S21", 900)
	ctx := context.Background()
	logger := quietLogger()

	if _, err := workflow.ApplyMovement(ctx, db, logger, orgId, workflow.NewMovement{
		BranchId: branch.ID, VariantId: variant.ID, Type: models.MovementTypeInbound, Qty: 0, UserId: 1,
	}); err == nil {
		t.Fatal("zero qty accepted")
	}
	if _, err := workflow.ApplyMovement(ctx, db, logger, orgId, workflow.NewMovement{
		BranchId: branch.ID, VariantId: variant.ID, Type: models.MovementTypeInbound, Qty: -5, UserId: 1,
	}); err == nil {
		t.Fatal("negative qty accepted for non-adjustment type")
	}
	if _, err := workflow.ApplyMovement(ctx, db, logger, orgId, workflow.NewMovement{
		BranchId: branch.ID, VariantId: variant.ID, Type: "XXX", Qty: 1, UserId: 1,
	}); err == nil {
		t.Fatal("invalid type accepted")
	}
}

func TestListMovementsFilterAndPagination(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	variant := seedVariant(t, db, orgId, "FUN-GEN", 150)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustApplyMovement(t, ctx, db, orgId, workflow.NewMovement{
			BranchId: branch.ID, VariantId: variant.ID, Type: models.MovementTypeInbound, Qty: 2, UserId: 1,
		})
	}
	mustApplyMovement(t, ctx, db, orgId, workflow.NewMovement{
		BranchId: branch.ID, VariantId: variant.ID, Type: models.MovementTypeOutbound, Qty: 1, UserId: 1,
	})

	inbound := models.MovementTypeInbound
	movements, total, err := workflow.ListMovements(ctx, db, orgId, branch.ID,
		workflow.MovementFilter{Type: &inbound}, utils.NormalizePagination(1, 2))
	if err != nil {
		t.Fatalf("ListMovements: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	if len(movements) != 2 {
		t.Fatalf("page size = %d, want 2", len(movements))
	}
	for _, m := range movements {
		if m.Type != models.MovementTypeInbound {
			t.Fatalf("filter leaked type %s", m.Type)
		}
	}
}

func mustApplyMovement(t *testing.T, ctx context.Context, db *gorm.DB, orgId string, input workflow.NewMovement) *models.Movement {
	t.Helper()
	movement, err := workflow.ApplyMovement(ctx, db, quietLogger(), orgId, input)
	if err != nil {
		t.Fatalf("ApplyMovement %s: %v", input.Type, err)
	}
	return movement
}
