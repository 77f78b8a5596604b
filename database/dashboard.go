package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/danielzuhad/stocking-app-sub001/model"
)

func CountProducts(ctx context.Context, q sqlx.QueryerContext, companyID string) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM products WHERE company_id = ? AND status = ?`,
		companyID, model.ProductActive)
	if err != nil {
		return 0, fmt.Errorf("CountProducts failed: %w", err)
	}
	return n, nil
}

// CountLowStock counts active products at or below their minimum stock.
func CountLowStock(ctx context.Context, q sqlx.QueryerContext, companyID string) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM products
		WHERE company_id = ? AND status = ? AND stock <= min_stock`, companyID, model.ProductActive)
	if err != nil {
		return 0, fmt.Errorf("CountLowStock failed: %w", err)
	}
	return n, nil
}

// StockValue sums price * stock over active products, in minor units.
func StockValue(ctx context.Context, q sqlx.QueryerContext, companyID string) (int64, error) {
	var v int64
	err := sqlx.GetContext(ctx, q, &v, `SELECT COALESCE(SUM(price * stock), 0) FROM products
		WHERE company_id = ? AND status = ?`, companyID, model.ProductActive)
	if err != nil {
		return 0, fmt.Errorf("StockValue failed: %w", err)
	}
	return v, nil
}

// CountRecordsSince counts inventory records of a type created at or after since.
func CountRecordsSince(ctx context.Context, q sqlx.QueryerContext, companyID, recordType string, since time.Time) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM inventory_records
		WHERE company_id = ? AND type = ? AND created_at >= ?`, companyID, recordType, since.UTC())
	if err != nil {
		return 0, fmt.Errorf("CountRecordsSince (%s) failed: %w", recordType, err)
	}
	return n, nil
}
