package repository

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Tenant{},
		&domain.TenantUserLink{},
		&domain.APIKey{},
		&domain.IdempotencyRecord{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range []string{domain.BronzeProductsTable, domain.BronzeCustomersTable, domain.BronzeVendorsTable} {
		if err := db.Table(table).AutoMigrate(&domain.BronzeRecord{}); err != nil {
			t.Fatalf("migrate %s: %v", table, err)
		}
	}
	return db
}
