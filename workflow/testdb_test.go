package workflow_test

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"bitbucket.org/movilfix/taller_backend/config"
	"bitbucket.org/movilfix/taller_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// openTestDB gives each test its own in-memory database, capped at one
// connection so concurrent statements serialize at the pool instead of
// tripping sqlite's busy handler.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), config.InitConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	models.MigrateTableWith(db)
	return db
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// seedOrgBranch creates one organization with one branch (code MTY).
func seedOrgBranch(t *testing.T, db *gorm.DB) (string, *models.Branch) {
	t.Helper()
	org := models.Organization{Name: "Taller Test"}
	if err := db.Create(&org).Error; err != nil {
		t.Fatalf("seed organization: %v", err)
	}
	branch := models.Branch{OrganizationId: org.ID.String(), Code: "MTY", Name: "Sucursal Monterrey"}
	if err := db.Create(&branch).Error; err != nil {
		t.Fatalf("seed branch: %v", err)
	}
	return org.ID.String(), &branch
}

func seedSecondBranch(t *testing.T, db *gorm.DB, organizationId string) *models.Branch {
	t.Helper()
	branch := models.Branch{OrganizationId: organizationId, Code: "GDL", Name: "Sucursal Guadalajara"}
	if err := db.Create(&branch).Error; err != nil {
		t.Fatalf("seed second branch: %v", err)
	}
	return &branch
}

func seedVariant(t *testing.T, db *gorm.DB, organizationId, sku string, price int64) *models.Variant {
	t.Helper()
	variant := models.Variant{
		OrganizationId: organizationId,
		SKU:            sku,
		Name:           "Refacción " + sku,
		Price:          decimal.NewFromInt(price),
	}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant %s: %v", sku, err)
	}
	return &variant
}

func seedCashRegister(t *testing.T, db *gorm.DB, branchId int) *models.CashRegister {
	t.Helper()
	register := models.CashRegister{BranchId: branchId, Code: "CAJA1", Name: "Caja principal"}
	if err := db.Create(&register).Error; err != nil {
		t.Fatalf("seed cash register: %v", err)
	}
	return &register
}
