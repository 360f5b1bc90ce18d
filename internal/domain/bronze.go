package domain

import (
	"time"

	"gorm.io/datatypes"
)

// BronzeRecord is one landed raw ingestion row. DataHash is the canonical
// content hash of (tenant id, payload) and is unique per landing table, so
// re-submitting identical content is a silent deduplication hit.
//
// Oversized payloads are offloaded to blob storage; StorageKey is set and
// RawPayload left empty in that case.
type BronzeRecord struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	TenantID       string         `gorm:"size:36;not null;index" json:"tenant_id"`
	SourceName     string         `gorm:"size:128;not null;index" json:"source_name"`
	SourceRecordID string         `gorm:"size:255" json:"source_record_id,omitempty"`
	RunID          string         `gorm:"size:36;not null;index" json:"run_id"`
	RawPayload     datatypes.JSON `json:"raw_payload,omitempty"`
	DataHash       string         `gorm:"column:data_hash;uniqueIndex;size:64;not null" json:"data_hash"`
	StorageKey     string         `gorm:"size:512" json:"storage_key,omitempty"`
	PayloadBytes   int64          `gorm:"not null;default:0" json:"payload_bytes"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Landing table names, one per ingestion source.
const (
	BronzeProductsTable  = "bronze_products"
	BronzeCustomersTable = "bronze_customers"
	BronzeVendorsTable   = "bronze_vendors"
)

// BronzeTables lists every landing table, for migration.
func BronzeTables() []string {
	return []string{BronzeProductsTable, BronzeCustomersTable, BronzeVendorsTable}
}

// LandingTableForSource maps a public source name to its landing table.
// Unknown sources land nowhere.
func LandingTableForSource(source string) (string, bool) {
	switch source {
	case "products":
		return BronzeProductsTable, true
	case "customers":
		return BronzeCustomersTable, true
	case "vendors":
		return BronzeVendorsTable, true
	default:
		return "", false
	}
}
