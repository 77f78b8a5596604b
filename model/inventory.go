package model

import (
	"database/sql"
	"time"
)

// Inventory record types.
const (
	RecordIn     = "IN"
	RecordOut    = "OUT"
	RecordAdjust = "ADJUST"
)

// InventoryRecord is one stock movement. Delta is the signed change applied
// to the product's stock and Balance the stock after it.
type InventoryRecord struct {
	ID          string         `db:"id" json:"id"`
	CompanyID   string         `db:"company_id" json:"companyId"`
	ProductID   string         `db:"product_id" json:"productId"`
	Type        string         `db:"type" json:"type"`
	Quantity    int64          `db:"quantity" json:"quantity"`
	Delta       int64          `db:"delta" json:"delta"`
	Balance     int64          `db:"balance" json:"balance"`
	Note        string         `db:"note" json:"note"`
	CreatedBy   sql.NullString `db:"created_by" json:"-"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	ProductSKU  string         `db:"product_sku" json:"productSku"`
	ProductName string         `db:"product_name" json:"productName"`
	CreatorName string         `db:"creator_name" json:"creatorName"`
}

type InventoryInput struct {
	ProductID string `json:"productId"`
	Type      string `json:"type"`
	Quantity  int64  `json:"quantity"`
	Note      string `json:"note"`
}
