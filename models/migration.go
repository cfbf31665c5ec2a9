package models

import (
	"log"

	"github.com/cargolense/tradedocs_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Organization{},
		&TradeDocument{}, &TradeDocumentSku{},
		&UnifiedTransaction{}, &FieldAudit{},
		&DocumentInventoryLink{},
		&TolerancePolicy{},
		&ComplianceEventRecord{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
