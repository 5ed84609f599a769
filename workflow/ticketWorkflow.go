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

const ticketFolioPrefix = "LAB"

// NewTicket is the input for CreateTicket.
type NewTicket struct {
	BranchId      int
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Device        string
	Brand         string
	Model         string
	SerialNumber  string
	Problem       string
	EstimatedCost decimal.Decimal
	EstimatedTime string
	UserId        int
}

// CreateTicket opens a repair order in RECIBIDO with its first history row.
// The folio is generated first (it owns its own atomicity); ticket and history
// then land together in one nested create.
func CreateTicket(ctx context.Context, db *gorm.DB, logger *logrus.Logger, organizationId string, input NewTicket) (*models.Ticket, error) {
	if _, err := models.GetBranch(db.WithContext(ctx), organizationId, input.BranchId); err != nil {
		return nil, err
	}

	folio, err := NextFolio(ctx, db, logger, organizationId, ticketFolioPrefix, input.BranchId)
	if err != nil {
		return nil, err
	}

	ticket := &models.Ticket{
		BranchId:      input.BranchId,
		Folio:         folio,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		CustomerEmail: input.CustomerEmail,
		Device:        input.Device,
		Brand:         input.Brand,
		Model:         input.Model,
		SerialNumber:  input.SerialNumber,
		Problem:       input.Problem,
		State:         models.TicketStateReceived,
		EstimatedCost: input.EstimatedCost,
		EstimatedTime: input.EstimatedTime,
		UserId:        input.UserId,
		History: []models.TicketHistory{
			{
				ToState: models.TicketStateReceived,
				Notes:   "Ticket creado",
				UserId:  input.UserId,
			},
		},
	}

	if err := db.WithContext(ctx).Create(ticket).Error; err != nil {
		config.LogError(logger, "ticketWorkflow.go", "CreateTicket", "Create", folio, err)
		return nil, err
	}
	TicketTransitionsTotal.WithLabelValues(string(models.TicketStateReceived)).Inc()
	return ticket, nil
}

// TicketPatch carries optional field updates; nil means keep.
type TicketPatch struct {
	CustomerName  *string
	CustomerPhone *string
	CustomerEmail *string
	Device        *string
	Brand         *string
	Model         *string
	SerialNumber  *string
	Problem       *string
	Diagnosis     *string
	Solution      *string
	EstimatedCost *decimal.Decimal
	FinalCost     *decimal.Decimal
	EstimatedTime *string
	WarrantyDays  *int
	InternalNotes *string
}

// UpdateTicket patches descriptive fields. Workflow state is untouchable here;
// it only moves through UpdateTicketState.
func UpdateTicket(ctx context.Context, db *gorm.DB, organizationId string, id int, patch TicketPatch) (*models.Ticket, error) {
	ticket, err := models.GetTicket(db.WithContext(ctx), organizationId, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	setString := func(column string, v *string) {
		if v != nil {
			updates[column] = *v
		}
	}
	setString("customer_name", patch.CustomerName)
	setString("customer_phone", patch.CustomerPhone)
	setString("customer_email", patch.CustomerEmail)
	setString("device", patch.Device)
	setString("brand", patch.Brand)
	setString("model", patch.Model)
	setString("serial_number", patch.SerialNumber)
	setString("problem", patch.Problem)
	setString("diagnosis", patch.Diagnosis)
	setString("solution", patch.Solution)
	setString("estimated_time", patch.EstimatedTime)
	setString("internal_notes", patch.InternalNotes)
	if patch.EstimatedCost != nil {
		updates["estimated_cost"] = *patch.EstimatedCost
	}
	if patch.FinalCost != nil {
		updates["final_cost"] = *patch.FinalCost
	}
	if patch.WarrantyDays != nil {
		updates["warranty_days"] = *patch.WarrantyDays
	}
	if len(updates) == 0 {
		return ticket, nil
	}

	if err := db.WithContext(ctx).Model(&models.Ticket{}).Where("id = ?", ticket.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return models.GetTicket(db.WithContext(ctx), organizationId, id)
}

// AddTicketPart pledges stock to a ticket: the part row is created RESERVADA
// and StockLevel.reserved is incremented, in one atomic batch. The pledge does
// not check on-hand quantity; reserved > qty is a visible back-order, and the
// hard guard runs at consumption time.
func AddTicketPart(ctx context.Context, db *gorm.DB, logger *logrus.Logger, organizationId string, ticketId int, variantId int, qty int) (*models.TicketPart, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("part qty must be positive")
	}

	ticket, err := models.GetTicket(db.WithContext(ctx), organizationId, ticketId)
	if err != nil {
		return nil, err
	}

	part := &models.TicketPart{
		TicketId:  ticket.ID,
		VariantId: variantId,
		Qty:       qty,
		State:     models.TicketPartStateReserved,
	}

	err = models.ApplyBatch(db.WithContext(ctx),
		func(tx *gorm.DB) error { return tx.Create(part).Error },
		models.IncrementReservedOp(ticket.BranchId, variantId, qty),
	)
	if err != nil {
		config.LogError(logger, "ticketWorkflow.go", "AddTicketPart", "ApplyBatch", ticketId, err)
		return nil, err
	}
	return part, nil
}

// StateChange is the input for UpdateTicketState.
type StateChange struct {
	State          models.TicketState
	Notes          string
	Diagnosis      *string
	Solution       *string
	EstimatedCost  *decimal.Decimal
	FinalCost      *decimal.Decimal
	AdvancePayment *decimal.Decimal
	InternalNotes  *string
	UserId         int
	Ip             string
	UserAgent      string
}

// UpdateTicketState advances the workflow. The transition must be an edge of
// the table in models; ENTREGADO additionally requires the ticket to be fully
// paid (advance plus payments of settled linked sales covering the final
// cost). The ticket update and the history row land in one atomic batch.
// Reservation side effects (consume on EN_REPARACION, release on CANCELADO)
// run best-effort afterwards and are idempotent per part, so a retried
// trigger is safe; a failure partway leaves earlier per-part batches applied.
func UpdateTicketState(ctx context.Context, db *gorm.DB, logger *logrus.Logger, organizationId string, id int, change StateChange) (*models.Ticket, error) {
	if !change.State.IsValid() {
		return nil, fmt.Errorf("invalid ticket state %q", change.State)
	}

	ticket, err := models.GetTicket(db.WithContext(ctx), organizationId, id)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(ticket.State, change.State) {
		TicketTransitionsRejectedTotal.WithLabelValues("invalid_transition").Inc()
		return nil, fmt.Errorf("%w: %s -> %s", utils.ErrInvalidTransition, ticket.State, change.State)
	}

	if change.State == models.TicketStateDelivered {
		if err := checkTicketPaid(ctx, db, ticket, change.FinalCost); err != nil {
			TicketTransitionsRejectedTotal.WithLabelValues("payment_incomplete").Inc()
			return nil, err
		}
	}

	updates := map[string]interface{}{"state": change.State}
	if change.Diagnosis != nil {
		updates["diagnosis"] = *change.Diagnosis
	}
	if change.Solution != nil {
		updates["solution"] = *change.Solution
	}
	if change.EstimatedCost != nil {
		updates["estimated_cost"] = *change.EstimatedCost
	}
	if change.FinalCost != nil {
		updates["final_cost"] = *change.FinalCost
	}
	if change.AdvancePayment != nil {
		updates["advance_payment"] = *change.AdvancePayment
	}
	if change.InternalNotes != nil {
		updates["internal_notes"] = *change.InternalNotes
	}

	fromState := ticket.State
	history := &models.TicketHistory{
		TicketId:  ticket.ID,
		FromState: &fromState,
		ToState:   change.State,
		Notes:     change.Notes,
		UserId:    change.UserId,
		Ip:        change.Ip,
		UserAgent: change.UserAgent,
	}

	err = models.ApplyBatch(db.WithContext(ctx),
		func(tx *gorm.DB) error {
			// Conditioned on the from-state so only one of two racing
			// transitions from the same snapshot lands.
			result := tx.Model(&models.Ticket{}).
				Where("id = ? AND state = ?", ticket.ID, fromState).
				Updates(updates)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("%w: ticket %d left %s", utils.ErrConcurrencyConflict, ticket.ID, fromState)
			}
			return nil
		},
		func(tx *gorm.DB) error { return tx.Create(history).Error },
	)
	if err != nil {
		config.LogError(logger, "ticketWorkflow.go", "UpdateTicketState", "ApplyBatch", id, err)
		return nil, err
	}
	TicketTransitionsTotal.WithLabelValues(string(change.State)).Inc()

	// Side effects outside the batch. Both are guarded by the part's current
	// state, so a duplicate trigger is a no-op.
	switch change.State {
	case models.TicketStateInRepair:
		if err := consumeReservedParts(ctx, db, logger, organizationId, ticket, change.UserId, change.Ip, change.UserAgent); err != nil {
			config.LogError(logger, "ticketWorkflow.go", "UpdateTicketState", "ConsumeReservedParts", id, err)
		}
	case models.TicketStateCancelled:
		if err := releaseReservedParts(ctx, db, logger, ticket); err != nil {
			config.LogError(logger, "ticketWorkflow.go", "UpdateTicketState", "ReleaseReservedParts", id, err)
		}
	}

	return models.GetTicket(db.WithContext(ctx), organizationId, id)
}

// checkTicketPaid gates delivery: advance + payments of PAGADO linked sales
// must cover the final cost.
func checkTicketPaid(ctx context.Context, db *gorm.DB, ticket *models.Ticket, finalCostOverride *decimal.Decimal) error {
	finalCost := ticket.FinalCost
	if finalCostOverride != nil {
		finalCost = *finalCostOverride
	}

	totalPaid := ticket.AdvancePayment
	sales, err := models.ListPaidSalesForTicket(db.WithContext(ctx), ticket.ID)
	if err != nil {
		return err
	}
	for _, sale := range sales {
		totalPaid = totalPaid.Add(sale.TotalPaid())
	}

	if totalPaid.LessThan(finalCost) {
		return fmt.Errorf("%w: total %s, paid %s", utils.ErrPaymentIncomplete, finalCost, totalPaid)
	}
	return nil
}

// consumeReservedParts turns every still-reserved part into a consumption:
// outbound movement, qty+reserved decrement, part -> CONSUMIDA, one atomic
// batch per part. Parts already CONSUMIDA or LIBERADA are skipped. A failure
// on one part stops the loop; applied parts stay applied and a retry picks up
// the rest.
func consumeReservedParts(ctx context.Context, db *gorm.DB, logger *logrus.Logger, organizationId string, ticket *models.Ticket, userId int, ip, userAgent string) error {
	for i := range ticket.Parts {
		part := &ticket.Parts[i]
		if part.State != models.TicketPartStateReserved {
			continue
		}

		ticketId := ticket.ID
		movement := &models.Movement{
			BranchId:  ticket.BranchId,
			VariantId: part.VariantId,
			Type:      models.MovementTypeOutbound,
			Qty:       part.Qty,
			Reason:    fmt.Sprintf("Consumo por ticket %s", ticket.Folio),
			TicketId:  &ticketId,
			UserId:    userId,
			Ip:        ip,
			UserAgent: userAgent,
		}

		partId := part.ID
		err := models.ApplyBatch(db.WithContext(ctx),
			models.CreateMovementOp(movement),
			models.ConsumeStockOp(ticket.BranchId, part.VariantId, part.Qty),
			func(tx *gorm.DB) error {
				// The state guard aborts the batch for a part another trigger
				// already settled, rolling the movement and the decrement back.
				result := tx.Model(&models.TicketPart{}).
					Where("id = ? AND state = ?", partId, models.TicketPartStateReserved).
					Update("state", models.TicketPartStateConsumed)
				if result.Error != nil {
					return result.Error
				}
				if result.RowsAffected == 0 {
					return fmt.Errorf("%w: ticket part %d already settled", utils.ErrConcurrencyConflict, partId)
				}
				return nil
			},
		)
		if err != nil {
			return err
		}
		MovementsAppliedTotal.WithLabelValues(string(models.MovementTypeOutbound)).Inc()
	}
	return nil
}

// releaseReservedParts undoes the pledge of every still-reserved part:
// reserved decrement plus part -> LIBERADA, one batch per part. No movement is
// recorded; nothing physically left the shelf.
func releaseReservedParts(ctx context.Context, db *gorm.DB, logger *logrus.Logger, ticket *models.Ticket) error {
	for i := range ticket.Parts {
		part := &ticket.Parts[i]
		if part.State != models.TicketPartStateReserved {
			continue
		}

		partId := part.ID
		err := models.ApplyBatch(db.WithContext(ctx),
			models.DecrementReservedOp(ticket.BranchId, part.VariantId, part.Qty),
			func(tx *gorm.DB) error {
				result := tx.Model(&models.TicketPart{}).
					Where("id = ? AND state = ?", partId, models.TicketPartStateReserved).
					Update("state", models.TicketPartStateReleased)
				if result.Error != nil {
					return result.Error
				}
				if result.RowsAffected == 0 {
					return fmt.Errorf("%w: ticket part %d already settled", utils.ErrConcurrencyConflict, partId)
				}
				return nil
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}
