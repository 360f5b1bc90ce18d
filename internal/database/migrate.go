package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
)

// Migrate brings the schema up to date. The bronze landing tables share one
// record shape but live per source, so each is migrated under its own name.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Tenant{},
		&domain.TenantUserLink{},
		&domain.APIKey{},
		&domain.IdempotencyRecord{},
	); err != nil {
		return fmt.Errorf("migrate core tables: %w", err)
	}

	for _, table := range domain.BronzeTables() {
		if err := db.Table(table).AutoMigrate(&domain.BronzeRecord{}); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
	}
	return nil
}
