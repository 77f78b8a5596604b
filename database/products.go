package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

const productColumns = `id, company_id, sku, name, category, unit, price, min_stock, stock,
	image_url, image_file_id, status, created_at, updated_at`

const skuConflict = "a product with this SKU already exists"

func CreateProduct(ctx context.Context, e sqlx.ExtContext, p *model.Product) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.Status == "" {
		p.Status = model.ProductActive
	}
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt

	const q = `INSERT INTO products (id, company_id, sku, name, category, unit, price, min_stock, stock,
			image_url, image_file_id, status, created_at, updated_at)
		VALUES (:id, :company_id, :sku, :name, :category, :unit, :price, :min_stock, :stock,
			:image_url, :image_file_id, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, e, q, p); err != nil {
		return fmt.Errorf("CreateProduct (SKU: %s) failed: %w", p.SKU, conflictOnUnique(err, skuConflict))
	}
	return nil
}

// GetProduct loads a product of companyID. Products of other companies are
// reported as not found.
func GetProduct(ctx context.Context, q sqlx.QueryerContext, companyID, id string) (*model.Product, error) {
	var p model.Product
	err := sqlx.GetContext(ctx, q, &p, `SELECT `+productColumns+` FROM products WHERE company_id = ? AND id = ?`, companyID, id)
	if err != nil {
		return nil, fmt.Errorf("GetProduct (ID: %s) failed: %w", id, notFoundOnNoRows(err, "product"))
	}
	return &p, nil
}

func GetProductBySKU(ctx context.Context, q sqlx.QueryerContext, companyID, sku string) (*model.Product, error) {
	var p model.Product
	err := sqlx.GetContext(ctx, q, &p, `SELECT `+productColumns+` FROM products WHERE company_id = ? AND sku = ?`, companyID, sku)
	if err != nil {
		return nil, fmt.Errorf("GetProductBySKU (SKU: %s) failed: %w", sku, notFoundOnNoRows(err, "product"))
	}
	return &p, nil
}

// UpdateProduct saves the editable catalogue fields. Stock is only changed
// through inventory records.
func UpdateProduct(ctx context.Context, e sqlx.ExtContext, p *model.Product) error {
	p.UpdatedAt = now()
	const q = `UPDATE products SET sku = :sku, name = :name, category = :category, unit = :unit,
			price = :price, min_stock = :min_stock, image_url = :image_url, image_file_id = :image_file_id,
			status = :status, updated_at = :updated_at
		WHERE id = :id AND company_id = :company_id`
	res, err := sqlx.NamedExecContext(ctx, e, q, p)
	if err != nil {
		return fmt.Errorf("UpdateProduct (ID: %s) failed: %w", p.ID, conflictOnUnique(err, skuConflict))
	}
	return requireAffected(res, "product")
}

func SetProductStock(ctx context.Context, e sqlx.ExecerContext, companyID, id string, stock int64) error {
	res, err := e.ExecContext(ctx, `UPDATE products SET stock = ?, updated_at = ? WHERE id = ? AND company_id = ?`,
		stock, now(), id, companyID)
	if err != nil {
		return fmt.Errorf("SetProductStock (ID: %s) failed: %w", id, err)
	}
	return requireAffected(res, "product")
}

// DeleteProduct removes a product that has no inventory history.
func DeleteProduct(ctx context.Context, e sqlx.ExtContext, companyID, id string) error {
	var records int
	if err := sqlx.GetContext(ctx, e, &records, `SELECT COUNT(*) FROM inventory_records WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("counting records of product %s: %w", id, err)
	}
	if records > 0 {
		return apperr.New(apperr.EConflict, "product has inventory records; archive it instead")
	}
	res, err := e.ExecContext(ctx, `DELETE FROM products WHERE id = ? AND company_id = ?`, id, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete product with id %s: %w", id, err)
	}
	return requireAffected(res, "product")
}

// UpsertProductBySKU inserts p or updates the catalogue fields of the product
// with the same SKU. It reports whether a new product was created.
func UpsertProductBySKU(ctx context.Context, tx *sqlx.Tx, p *model.Product) (bool, error) {
	existing, err := GetProductBySKU(ctx, tx, p.CompanyID, p.SKU)
	if err != nil {
		if apperr.ErrorCode(err) != apperr.ENotFound {
			return false, err
		}
		return true, CreateProduct(ctx, tx, p)
	}

	existing.Name = p.Name
	existing.Category = p.Category
	existing.Unit = p.Unit
	existing.Price = p.Price
	existing.MinStock = p.MinStock
	if err := UpdateProduct(ctx, tx, existing); err != nil {
		return false, err
	}
	*p = *existing
	return false, nil
}

// ListActiveProducts returns up to limit active products ordered by SKU, for
// pickers.
func ListActiveProducts(ctx context.Context, q sqlx.QueryerContext, companyID string, limit int) ([]model.Product, error) {
	products := []model.Product{}
	err := sqlx.SelectContext(ctx, q, &products, `SELECT `+productColumns+` FROM products
		WHERE company_id = ? AND status = ? ORDER BY sku LIMIT ?`, companyID, model.ProductActive, limit)
	if err != nil {
		return nil, fmt.Errorf("ListActiveProducts (company: %s) failed: %w", companyID, err)
	}
	return products, nil
}
