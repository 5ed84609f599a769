package models

import (
	"errors"
	"fmt"
	"time"

	"bitbucket.org/movilfix/taller_backend/config"
	"bitbucket.org/movilfix/taller_backend/utils"
	"gorm.io/gorm"
)

type Branch struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"type:char(36);index;not null" json:"organization_id"`
	Code           string    `gorm:"size:10;not null;uniqueIndex:idx_branch_org_code" json:"code"`
	Name           string    `gorm:"size:150;not null" json:"name"`
	Address        string    `gorm:"size:255" json:"address"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// branchScope restricts a query on a branch-owned table to the caller's
// organization. Every core operation threads organizationId explicitly; there
// is no ambient tenant state.
func branchScope(db *gorm.DB, organizationId string) *gorm.DB {
	return db.Model(&Branch{}).Select("id").Where("organization_id = ?", organizationId)
}

func GetBranch(db *gorm.DB, organizationId string, branchId int) (*Branch, error) {
	var branch Branch
	err := db.Where("id = ? AND organization_id = ?", branchId, organizationId).First(&branch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: branch %d", utils.ErrNotFound, branchId)
		}
		return nil, err
	}
	return &branch, nil
}

// GetBranchCode resolves a branch code with a redis read-through cache. Folio
// generation hits this on every call, and branch codes never change once
// printed on documents.
func GetBranchCode(db *gorm.DB, organizationId string, branchId int) (string, error) {
	cacheKey := fmt.Sprintf("Branch:Code:%s:%d", organizationId, branchId)

	var code string
	if found, err := config.GetRedisObject(cacheKey, &code); err == nil && found {
		return code, nil
	}

	branch, err := GetBranch(db, organizationId, branchId)
	if err != nil {
		return "", err
	}
	_ = config.SetRedisObject(cacheKey, branch.Code, time.Hour)
	return branch.Code, nil
}
