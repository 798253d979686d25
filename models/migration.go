package models

import (
	"log"

	"github.com/mmdatafocus/reconcile_backend/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	if err := AutoMigrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Ingredient{}, &Product{},
		&ProductCost{}, &ProductCostLine{},
		&Obligation{},
		&Payment{}, &Allocation{},
		&OutboxMessage{},
		&ReconciliationReport{},
	)
}
