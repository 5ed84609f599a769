// seed-demo migrates the schema and loads a minimal demo dataset: one
// organization, two branches, a cash register per branch, and a few stocked
// variants. Safe to rerun; existing rows are matched by natural key.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-demo
package main

import (
	"fmt"
	"os"

	"bitbucket.org/movilfix/taller_backend/config"
	"bitbucket.org/movilfix/taller_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const demoOrgName = "Taller Demo"

func main() {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	var org models.Organization
	err := db.Where("name = ?", demoOrgName).First(&org).Error
	if err == gorm.ErrRecordNotFound {
		org = models.Organization{Name: demoOrgName}
		err = db.Create(&org).Error
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed organization: %v\n", err)
		os.Exit(1)
	}
	orgId := org.ID.String()

	branches := []models.Branch{
		{OrganizationId: orgId, Code: "MTY", Name: "Sucursal Monterrey", Address: "Av. Constitución 100"},
		{OrganizationId: orgId, Code: "GDL", Name: "Sucursal Guadalajara", Address: "Av. Juárez 200"},
	}
	for i := range branches {
		b := &branches[i]
		err := db.Where("organization_id = ? AND code = ?", orgId, b.Code).First(b).Error
		if err == gorm.ErrRecordNotFound {
			err = db.Create(b).Error
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed branch %s: %v\n", b.Code, err)
			os.Exit(1)
		}

		register := models.CashRegister{BranchId: b.ID, Code: "CAJA1", Name: "Caja principal"}
		err = db.Where("branch_id = ? AND code = ?", b.ID, register.Code).First(&register).Error
		if err == gorm.ErrRecordNotFound {
			err = db.Create(&register).Error
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed cash register for %s: %v\n", b.Code, err)
			os.Exit(1)
		}
	}

	variants := []models.Variant{
		{OrganizationId: orgId, SKU: "PAN-IP13", Name: "Pantalla iPhone 13", Price: decimal.NewFromInt(2500)},
		{OrganizationId: orgId, SKU: "BAT-S21", Name: "Batería Galaxy S21", Price: decimal.NewFromInt(900)},
		{OrganizationId: orgId, SKU: "MIC-USB-C", Name: "Centro de carga USB-C", Price: decimal.NewFromInt(350)},
		{OrganizationId: orgId, SKU: "FUN-GEN", Name: "Funda genérica", Price: decimal.NewFromInt(150)},
	}
	for i := range variants {
		v := &variants[i]
		err := db.Where("organization_id = ? AND sku = ?", orgId, v.SKU).First(v).Error
		if err == gorm.ErrRecordNotFound {
			err = db.Create(v).Error
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed variant %s: %v\n", v.SKU, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Seeded organization %q (id=%s): %d branches, %d variants\n", demoOrgName, orgId, len(branches), len(variants))
	fmt.Println("Send the organization id in the X-Organization-Id header when calling the API.")
}
