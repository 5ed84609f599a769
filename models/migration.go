package models

import (
	"log"

	"bitbucket.org/movilfix/taller_backend/config"
	"gorm.io/gorm"
)

func defaultDB() *gorm.DB {
	return config.GetDB()
}

func MigrateTable() {
	// Uses the package-level DB set by config.ConnectDatabaseWithRetry.
	MigrateTableWith(nil)
}

// MigrateTableWith migrates on the given handle; tests pass their own DB.
func MigrateTableWith(db *gorm.DB) {
	if db == nil {
		db = defaultDB()
	}
	err := db.AutoMigrate(
		&Organization{}, &Branch{}, &Variant{},
		&FolioSequence{},
		&StockLevel{}, &Movement{},
		&Ticket{}, &TicketPart{}, &TicketHistory{},
		&Sale{}, &SaleLine{}, &Payment{},
		&CashRegister{}, &CashCut{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
