package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

const companyColumns = `id, name, slug, status, created_at, updated_at`

func CreateCompany(ctx context.Context, e sqlx.ExtContext, c *model.Company) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.Status == "" {
		c.Status = model.CompanyActive
	}
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt

	const q = `INSERT INTO companies (id, name, slug, status, created_at, updated_at)
		VALUES (:id, :name, :slug, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, e, q, c); err != nil {
		return fmt.Errorf("CreateCompany (slug: %s) failed: %w",
			c.Slug, conflictOnUnique(err, "a company with this slug already exists"))
	}
	return nil
}

func GetCompany(ctx context.Context, q sqlx.QueryerContext, id string) (*model.Company, error) {
	var c model.Company
	err := sqlx.GetContext(ctx, q, &c, `SELECT `+companyColumns+`,
		(SELECT COUNT(*) FROM memberships m WHERE m.company_id = companies.id) AS member_count
		FROM companies WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("GetCompany (ID: %s) failed: %w", id, notFoundOnNoRows(err, "company"))
	}
	return &c, nil
}

func ListCompanies(ctx context.Context, q sqlx.QueryerContext) ([]model.Company, error) {
	companies := []model.Company{}
	err := sqlx.SelectContext(ctx, q, &companies, `SELECT `+companyColumns+` FROM companies ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all companies: %w", err)
	}
	return companies, nil
}

func UpdateCompany(ctx context.Context, e sqlx.ExtContext, c *model.Company) error {
	c.UpdatedAt = now()
	const q = `UPDATE companies SET name = :name, status = :status, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, e, q, c)
	if err != nil {
		return fmt.Errorf("UpdateCompany (ID: %s) failed: %w", c.ID, err)
	}
	return requireAffected(res, "company")
}

// DeleteCompany removes a company with no products. Memberships and activity
// go with it.
func DeleteCompany(ctx context.Context, e sqlx.ExtContext, id string) error {
	var products int
	if err := sqlx.GetContext(ctx, e, &products, `SELECT COUNT(*) FROM products WHERE company_id = ?`, id); err != nil {
		return fmt.Errorf("counting products of company %s: %w", id, err)
	}
	if products > 0 {
		return apperr.Newf(apperr.EConflict, "company still has %d products", products)
	}
	res, err := e.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete company with id %s: %w", id, err)
	}
	return requireAffected(res, "company")
}

// SlugsWithPrefix returns the slugs starting with prefix.
func SlugsWithPrefix(ctx context.Context, q sqlx.QueryerContext, prefix string) ([]string, error) {
	slugs := []string{}
	err := sqlx.SelectContext(ctx, q, &slugs,
		`SELECT slug FROM companies WHERE slug LIKE ? ESCAPE '\'`,
		strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("SlugsWithPrefix (%s) failed: %w", prefix, err)
	}
	return slugs, nil
}
