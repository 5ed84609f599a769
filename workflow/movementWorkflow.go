package workflow

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/movilfix/taller_backend/config"
	"bitbucket.org/movilfix/taller_backend/models"
	"bitbucket.org/movilfix/taller_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NewMovement is the input for ApplyMovement.
type NewMovement struct {
	BranchId  int
	VariantId int
	Type      models.MovementType
	Qty       int
	Reason    string
	Folio     string
	TicketId  *int
	UserId    int
	Ip        string
	UserAgent string
}

// ApplyMovement appends a stock movement and updates the derived counter in
// one atomic batch.
//
// Inbound types (ING, TRF_IN, positive AJU) lazily create the counter row via
// upsert-increment; they cannot fail on quantity.
//
// Outbound types (EGR, VTA, TRF_OUT, negative AJU) validate availability with
// a read first and fail with ErrInsufficientStock before anything is written.
// The read and the decrement are separate statements, so a concurrent outbound
// on the same (branch, variant) can invalidate the check after it passed; the
// guarded decrement then fails the whole batch with ErrConcurrencyConflict
// instead of letting the counter go negative.
func ApplyMovement(ctx context.Context, db *gorm.DB, logger *logrus.Logger, organizationId string, input NewMovement) (*models.Movement, error) {
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid movement type %q", input.Type)
	}
	if input.Qty == 0 {
		return nil, fmt.Errorf("movement qty must not be zero")
	}
	if input.Qty < 0 && input.Type != models.MovementTypeAdjustment {
		return nil, fmt.Errorf("negative qty is only valid for %s movements", models.MovementTypeAdjustment)
	}

	if _, err := models.GetBranch(db.WithContext(ctx), organizationId, input.BranchId); err != nil {
		return nil, err
	}

	folio := input.Folio
	if folio == "" {
		var err error
		folio, err = NextFolio(ctx, db, logger, organizationId, input.Type.FolioPrefix(), input.BranchId)
		if err != nil {
			return nil, err
		}
	}

	qty := input.Qty
	if qty < 0 {
		qty = -qty
	}

	movement := &models.Movement{
		BranchId:  input.BranchId,
		VariantId: input.VariantId,
		Type:      input.Type,
		Qty:       qty,
		Reason:    input.Reason,
		Folio:     folio,
		TicketId:  input.TicketId,
		UserId:    input.UserId,
		Ip:        input.Ip,
		UserAgent: input.UserAgent,
	}

	var err error
	if isInboundMovement(input.Type, input.Qty) {
		err = models.ApplyBatch(db.WithContext(ctx),
			models.CreateMovementOp(movement),
			models.UpsertStockIncrementOp(input.BranchId, input.VariantId, qty),
		)
	} else {
		stock, serr := models.GetStockLevel(db.WithContext(ctx), input.BranchId, input.VariantId)
		if serr != nil && !errors.Is(serr, utils.ErrNotFound) {
			config.LogError(logger, "movementWorkflow.go", "ApplyMovement", "GetStockLevel", input, serr)
			return nil, serr
		}
		if serr != nil || stock.Qty < qty {
			StockDeniedTotal.Inc()
			return nil, fmt.Errorf("%w: branch %d variant %d requested %d",
				utils.ErrInsufficientStock, input.BranchId, input.VariantId, qty)
		}
		err = models.ApplyBatch(db.WithContext(ctx),
			models.CreateMovementOp(movement),
			models.DecrementStockOp(input.BranchId, input.VariantId, qty),
		)
	}
	if err != nil {
		config.LogError(logger, "movementWorkflow.go", "ApplyMovement", "ApplyBatch", input, err)
		if errors.Is(err, utils.ErrConcurrencyConflict) {
			StockConflictsTotal.Inc()
		}
		return nil, err
	}

	MovementsAppliedTotal.WithLabelValues(string(input.Type)).Inc()
	return movement, nil
}

func isInboundMovement(t models.MovementType, signedQty int) bool {
	switch t {
	case models.MovementTypeInbound, models.MovementTypeTransferIn:
		return true
	case models.MovementTypeAdjustment:
		return signedQty > 0
	}
	return false
}

// MovementFilter narrows ListMovements.
type MovementFilter struct {
	Type      *models.MovementType
	VariantId *int
	UserId    *int
	StartDate *string
	EndDate   *string
	Query     string
}

// ListMovements returns the branch's audit trail, newest first.
func ListMovements(ctx context.Context, db *gorm.DB, organizationId string, branchId int, filter MovementFilter, page utils.Pagination) ([]models.Movement, int64, error) {
	if _, err := models.GetBranch(db.WithContext(ctx), organizationId, branchId); err != nil {
		return nil, 0, err
	}

	query := db.WithContext(ctx).Model(&models.Movement{}).Where("branch_id = ?", branchId)
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.VariantId != nil {
		query = query.Where("variant_id = ?", *filter.VariantId)
	}
	if filter.UserId != nil {
		query = query.Where("user_id = ?", *filter.UserId)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate+" 23:59:59.999")
	}
	if filter.Query != "" {
		query = query.Where("folio LIKE ?", utils.LikePattern(filter.Query))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var movements []models.Movement
	err := query.Order("created_at DESC").
		Offset(page.Offset()).Limit(page.PageSize).
		Find(&movements).Error
	if err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}
