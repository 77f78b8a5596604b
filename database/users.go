package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

const userColumns = `id, email, name, password_hash, system_role, status, last_login_at, created_at, updated_at`

func CreateUser(ctx context.Context, e sqlx.ExtContext, u *model.User) error {
	if u.ID == "" {
		u.ID = NewID()
	}
	if u.SystemRole == "" {
		u.SystemRole = model.RoleUser
	}
	if u.Status == "" {
		u.Status = model.UserActive
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt

	const q = `INSERT INTO users (id, email, name, password_hash, system_role, status, created_at, updated_at)
		VALUES (:id, :email, :name, :password_hash, :system_role, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, e, q, u); err != nil {
		return fmt.Errorf("CreateUser (email: %s) failed: %w",
			u.Email, conflictOnUnique(err, "a user with this email already exists"))
	}
	return nil
}

func GetUser(ctx context.Context, q sqlx.QueryerContext, id string) (*model.User, error) {
	var u model.User
	if err := sqlx.GetContext(ctx, q, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("GetUser (ID: %s) failed: %w", id, notFoundOnNoRows(err, "user"))
	}
	return &u, nil
}

func GetUserByEmail(ctx context.Context, q sqlx.QueryerContext, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	if err := sqlx.GetContext(ctx, q, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`, email); err != nil {
		return nil, fmt.Errorf("GetUserByEmail failed: %w", notFoundOnNoRows(err, "user"))
	}
	return &u, nil
}

// UpdateUser saves name, system role and status.
func UpdateUser(ctx context.Context, e sqlx.ExtContext, u *model.User) error {
	u.UpdatedAt = now()
	const q = `UPDATE users SET name = :name, system_role = :system_role, status = :status, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, e, q, u)
	if err != nil {
		return fmt.Errorf("UpdateUser (ID: %s) failed: %w", u.ID, err)
	}
	return requireAffected(res, "user")
}

func SetUserPasswordHash(ctx context.Context, e sqlx.ExecerContext, id, hash string) error {
	res, err := e.ExecContext(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, now(), id)
	if err != nil {
		return fmt.Errorf("SetUserPasswordHash (ID: %s) failed: %w", id, err)
	}
	return requireAffected(res, "user")
}

func TouchUserLogin(ctx context.Context, e sqlx.ExecerContext, id string, at time.Time) error {
	if _, err := e.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, at.UTC(), id); err != nil {
		return fmt.Errorf("TouchUserLogin (ID: %s) failed: %w", id, err)
	}
	return nil
}

// CountActiveSuperadmins counts enabled platform administrators.
func CountActiveSuperadmins(ctx context.Context, q sqlx.QueryerContext) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM users WHERE system_role = ? AND status = ?`,
		model.RoleSuperadmin, model.UserActive)
	if err != nil {
		return 0, fmt.Errorf("counting superadmins: %w", err)
	}
	return n, nil
}

// DeleteUser removes a user unless they are the only owner of a company.
func DeleteUser(ctx context.Context, e sqlx.ExtContext, id string) error {
	var soleOwned []string
	err := sqlx.SelectContext(ctx, e, &soleOwned, `
		SELECT c.name FROM memberships m
		JOIN companies c ON c.id = m.company_id
		WHERE m.user_id = ? AND m.role = 'OWNER'
		  AND (SELECT COUNT(*) FROM memberships o WHERE o.company_id = m.company_id AND o.role = 'OWNER') = 1
		ORDER BY c.name`, id)
	if err != nil {
		return fmt.Errorf("checking sole ownerships of user %s: %w", id, err)
	}
	if len(soleOwned) > 0 {
		return apperr.Newf(apperr.EConflict, "user is the only owner of: %s", strings.Join(soleOwned, ", "))
	}

	res, err := e.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user with id %s: %w", id, err)
	}
	return requireAffected(res, "user")
}
