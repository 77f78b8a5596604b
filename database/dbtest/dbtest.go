// Package dbtest builds migrated throwaway SQLite databases and fixtures for
// tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

// New opens a migrated database in a temp file that is removed when the test
// ends.
func New(t *testing.T) *sqlx.DB {
	t.Helper()

	tempFile, err := os.CreateTemp(t.TempDir(), "test_*.db")
	require.NoError(t, err, "os.CreateTemp() failed")
	tempFile.Close()

	db, err := database.Open(tempFile.Name())
	require.NoError(t, err, "database.Open() failed")

	t.Cleanup(func() {
		db.Close()
		os.Remove(tempFile.Name())
	})
	return db
}

// Company inserts an active company.
func Company(t *testing.T, db *sqlx.DB, name, slug string) *model.Company {
	t.Helper()
	c := &model.Company{Name: name, Slug: slug}
	require.NoError(t, database.CreateCompany(context.Background(), db, c))
	return c
}

// User inserts an active user with the given system role and password hash.
func User(t *testing.T, db *sqlx.DB, email, role, passwordHash string) *model.User {
	t.Helper()
	if passwordHash == "" {
		passwordHash = "x"
	}
	u := &model.User{Email: email, Name: email, SystemRole: role, PasswordHash: passwordHash}
	require.NoError(t, database.CreateUser(context.Background(), db, u))
	return u
}

// Member adds u to c with role.
func Member(t *testing.T, db *sqlx.DB, c *model.Company, u *model.User, role string) *model.Membership {
	t.Helper()
	m := &model.Membership{CompanyID: c.ID, UserID: u.ID, Role: role}
	require.NoError(t, database.AddMembership(context.Background(), db, m))
	m.UserName, m.UserEmail, m.CompanyName = u.Name, u.Email, c.Name
	return m
}

// Product inserts an active product of c with the given stock.
func Product(t *testing.T, db *sqlx.DB, c *model.Company, sku string, price, stock int64) *model.Product {
	t.Helper()
	p := &model.Product{CompanyID: c.ID, SKU: sku, Name: "Product " + sku, Unit: "pcs", Price: price, Stock: stock}
	require.NoError(t, database.CreateProduct(context.Background(), db, p))
	return p
}
