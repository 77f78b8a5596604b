package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/danielzuhad/stocking-app-sub001/model"
)

func InsertInventoryRecord(ctx context.Context, e sqlx.ExtContext, r *model.InventoryRecord) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now()
	}
	const q = `INSERT INTO inventory_records (id, company_id, product_id, type, quantity, delta, balance, note, created_by, created_at)
		VALUES (:id, :company_id, :product_id, :type, :quantity, :delta, :balance, :note, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, e, q, r); err != nil {
		return fmt.Errorf("failed to insert inventory record (product: %s): %w", r.ProductID, err)
	}
	return nil
}

// ListProductRecords returns the newest records of a product first.
func ListProductRecords(ctx context.Context, q sqlx.QueryerContext, companyID, productID string, limit int) ([]model.InventoryRecord, error) {
	records := []model.InventoryRecord{}
	err := sqlx.SelectContext(ctx, q, &records, `
		SELECT r.id, r.company_id, r.product_id, r.type, r.quantity, r.delta, r.balance, r.note,
		       r.created_by, r.created_at, p.sku AS product_sku, p.name AS product_name,
		       COALESCE(u.name, '') AS creator_name
		FROM inventory_records r
		JOIN products p ON p.id = r.product_id
		LEFT JOIN users u ON u.id = r.created_by
		WHERE r.company_id = ? AND r.product_id = ?
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ?`, companyID, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListProductRecords (product: %s) failed: %w", productID, err)
	}
	return records, nil
}
