package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/movilfix/taller_backend/config"
	"bitbucket.org/movilfix/taller_backend/models"
	"bitbucket.org/movilfix/taller_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	folioMaxRetries = 5
	folioRetryDelay = 10 * time.Millisecond
)

// currentPeriod returns the YYYYMM bucket folios are numbered within.
func currentPeriod(now time.Time) string {
	return now.Format("200601")
}

func formatFolio(prefix, branchCode, period string, seq int64) string {
	return fmt.Sprintf("%s-%s-%s-%04d", prefix, branchCode, period, seq)
}

// NextFolio issues the next document number for (prefix, branch) in the
// current period. The underlying counter step is a single atomic statement;
// a lost race (concurrent creator or concurrent increment) is retried with a
// small linear backoff up to folioMaxRetries attempts, after which the call
// fails with ErrSequenceGeneration. Issued numbers are never reclaimed, even
// when the owning document is later cancelled.
func NextFolio(ctx context.Context, db *gorm.DB, logger *logrus.Logger, organizationId string, prefix string, branchId int) (string, error) {
	period := currentPeriod(time.Now())

	branchCode, err := models.GetBranchCode(db.WithContext(ctx), organizationId, branchId)
	if err != nil {
		config.LogError(logger, "folioWorkflow.go", "NextFolio", "GetBranchCode", branchId, err)
		return "", err
	}

	for attempt := 1; attempt <= folioMaxRetries; attempt++ {
		seq, err := models.NextSeq(db.WithContext(ctx), prefix, branchId, period)
		if err == nil {
			FoliosIssuedTotal.WithLabelValues(prefix).Inc()
			return formatFolio(prefix, branchCode, period, seq), nil
		}
		if !errors.Is(err, utils.ErrConcurrencyConflict) {
			config.LogError(logger, "folioWorkflow.go", "NextFolio", "NextSeq", prefix, err)
			return "", err
		}
		FolioRetriesTotal.Inc()
		time.Sleep(folioRetryDelay * time.Duration(attempt))
	}

	FolioExhaustedTotal.Inc()
	err = fmt.Errorf("%w: %s branch %d period %s", utils.ErrSequenceGeneration, prefix, branchId, period)
	config.LogError(logger, "folioWorkflow.go", "NextFolio", "RetriesExhausted", prefix, err)
	return "", err
}

// PreviewFolio returns the number the next call to NextFolio would most likely
// produce. Read-only best guess; it reserves nothing.
func PreviewFolio(ctx context.Context, db *gorm.DB, organizationId string, prefix string, branchId int) (string, error) {
	period := currentPeriod(time.Now())

	branchCode, err := models.GetBranchCode(db.WithContext(ctx), organizationId, branchId)
	if err != nil {
		return "", err
	}

	seq, err := models.CurrentSeq(db.WithContext(ctx), prefix, branchId, period)
	if err != nil {
		return "", err
	}
	return formatFolio(prefix, branchCode, period, seq+1), nil
}
