package models

import (
	"errors"
	"fmt"
	"time"

	"bitbucket.org/movilfix/taller_backend/utils"
	"gorm.io/gorm"
)

// FolioSequence is the per-(prefix, branch, period) counter behind
// human-readable document numbers. Rows are created on first use, mutated only
// through NextSeq, and never deleted; issued seq values are never reused even
// when the owning document is cancelled.
type FolioSequence struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Prefix    string    `gorm:"size:10;not null;uniqueIndex:idx_folio_key" json:"prefix"`
	BranchId  int       `gorm:"not null;uniqueIndex:idx_folio_key" json:"branch_id"`
	Period    string    `gorm:"size:6;not null;uniqueIndex:idx_folio_key" json:"period"`
	Seq       int64     `gorm:"not null;default:0" json:"seq"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NextSeq advances the counter for a key by exactly one and returns the issued
// value. No interactive transaction is available, so the advance is a
// single-statement optimistic step:
//
//   - first use: INSERT seq=1; a duplicate-key failure means another creator
//     won the race,
//   - otherwise: UPDATE seq = old+1 WHERE id = ? AND seq = old; zero rows
//     affected means a concurrent writer advanced the counter first.
//
// Both losing outcomes come back as ErrConcurrencyConflict; the folio workflow
// owns the bounded retry loop.
func NextSeq(db *gorm.DB, prefix string, branchId int, period string) (int64, error) {
	var seq FolioSequence
	err := db.Where("prefix = ? AND branch_id = ? AND period = ?", prefix, branchId, period).
		First(&seq).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
		seq = FolioSequence{Prefix: prefix, BranchId: branchId, Period: period, Seq: 1}
		if err := db.Create(&seq).Error; err != nil {
			if IsDuplicateKeyErr(err) {
				return 0, fmt.Errorf("%w: folio sequence %s-%d-%s", utils.ErrConcurrencyConflict, prefix, branchId, period)
			}
			return 0, err
		}
		return 1, nil
	}

	next := seq.Seq + 1
	result := db.Model(&FolioSequence{}).
		Where("id = ? AND seq = ?", seq.ID, seq.Seq).
		Update("seq", next)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, fmt.Errorf("%w: folio sequence %s-%d-%s", utils.ErrConcurrencyConflict, prefix, branchId, period)
	}
	return next, nil
}

// CurrentSeq returns the last issued value for a key, or 0 when the key has
// never been used. Read-only; used by folio previews.
func CurrentSeq(db *gorm.DB, prefix string, branchId int, period string) (int64, error) {
	var seq FolioSequence
	err := db.Where("prefix = ? AND branch_id = ? AND period = ?", prefix, branchId, period).
		First(&seq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return seq.Seq, nil
}
