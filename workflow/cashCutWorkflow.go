package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/movilfix/taller_backend/config"
	"bitbucket.org/movilfix/taller_backend/models"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NewCashCut is the input for CreateCashCut.
type NewCashCut struct {
	CashRegisterId int
	BranchId       int
	Date           time.Time
	InitialAmount  *decimal.Decimal
	Adjustments    decimal.Decimal
	Notes          string
	UserId         int
}

// dayBounds returns [00:00:00.000, 23:59:59.999] in the date's location.
func dayBounds(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	end := start.Add(24*time.Hour - time.Millisecond)
	return start, end
}

// CreateCashCut snapshots one register's day: the day's settled sales summed
// per payment method, cash taken against tickets counted additionally as
// advances, chained from the prior cut's closing balance unless an explicit
// initial amount overrides it. The record is immutable; corrections happen on
// a later cut's adjustments.
//
// Chaining reads the prior cut before writing the new one, so two concurrent
// cuts for the same register could both chain off the same predecessor. When
// redis is configured a short per-register lock closes that window; without
// it the window stands.
func CreateCashCut(ctx context.Context, db *gorm.DB, logger *logrus.Logger, organizationId string, input NewCashCut) (*models.CashCut, error) {
	if _, err := models.GetBranch(db.WithContext(ctx), organizationId, input.BranchId); err != nil {
		return nil, err
	}
	register, err := models.GetCashRegister(db.WithContext(ctx), organizationId, input.CashRegisterId)
	if err != nil {
		return nil, err
	}
	if register.BranchId != input.BranchId {
		return nil, fmt.Errorf("cash register %d does not belong to branch %d", register.ID, input.BranchId)
	}

	if locker := config.GetRedisLock(); locker != nil {
		lock, lerr := locker.Obtain(ctx, fmt.Sprintf("cashcut:%d", register.ID), 10*time.Second, &redislock.Options{
			RetryStrategy: redislock.LinearBackoff(100 * time.Millisecond),
		})
		if lerr != nil {
			config.LogError(logger, "cashCutWorkflow.go", "CreateCashCut", "ObtainLock", register.ID, lerr)
			return nil, lerr
		}
		defer lock.Release(context.Background())
	}

	startOfDay, endOfDay := dayBounds(input.Date)
	sales, err := models.ListPaidSalesForDay(db.WithContext(ctx), input.BranchId, startOfDay, endOfDay)
	if err != nil {
		config.LogError(logger, "cashCutWorkflow.go", "CreateCashCut", "ListPaidSalesForDay", input.BranchId, err)
		return nil, err
	}

	salesCash := decimal.Zero
	salesCard := decimal.Zero
	salesTransfer := decimal.Zero
	advances := decimal.Zero

	for _, sale := range sales {
		for _, payment := range sale.Payments {
			switch payment.Method {
			case models.PaymentMethodCash:
				salesCash = salesCash.Add(payment.Amount)
				if sale.TicketId != nil {
					advances = advances.Add(payment.Amount)
				}
			case models.PaymentMethodCard:
				salesCard = salesCard.Add(payment.Amount)
			case models.PaymentMethodTransfer:
				salesTransfer = salesTransfer.Add(payment.Amount)
			}
		}
	}

	var initialAmount decimal.Decimal
	if input.InitialAmount != nil {
		initialAmount = *input.InitialAmount
	} else {
		prior, perr := models.GetPriorCashCut(db.WithContext(ctx), register.ID, startOfDay)
		if perr != nil {
			return nil, perr
		}
		if prior != nil {
			initialAmount = prior.FinalAmount
		}
	}

	totalIncome := salesCash.Add(salesCard).Add(salesTransfer).Add(advances).Add(input.Adjustments)
	finalAmount := initialAmount.Add(totalIncome)

	cut := &models.CashCut{
		CashRegisterId: register.ID,
		BranchId:       input.BranchId,
		Date:           startOfDay,
		InitialAmount:  initialAmount,
		SalesCash:      salesCash,
		SalesCard:      salesCard,
		SalesTransfer:  salesTransfer,
		Advances:       advances,
		Adjustments:    input.Adjustments,
		TotalIncome:    totalIncome,
		FinalAmount:    finalAmount,
		Notes:          input.Notes,
		UserId:         input.UserId,
	}

	if err := db.WithContext(ctx).Create(cut).Error; err != nil {
		config.LogError(logger, "cashCutWorkflow.go", "CreateCashCut", "Create", register.ID, err)
		return nil, err
	}
	CashCutsCreatedTotal.Inc()
	return cut, nil
}

// CreateCashRegister registers a till for a branch.
func CreateCashRegister(ctx context.Context, db *gorm.DB, organizationId string, branchId int, code, name string) (*models.CashRegister, error) {
	if _, err := models.GetBranch(db.WithContext(ctx), organizationId, branchId); err != nil {
		return nil, err
	}
	register := &models.CashRegister{
		BranchId: branchId,
		Code:     code,
		Name:     name,
	}
	if err := db.WithContext(ctx).Create(register).Error; err != nil {
		return nil, err
	}
	return register, nil
}
