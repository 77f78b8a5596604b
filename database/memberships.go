package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

const membershipSelect = `
	SELECT m.id, m.company_id, m.user_id, m.role, m.created_at,
	       u.name AS user_name, u.email AS user_email, c.name AS company_name
	FROM memberships m
	JOIN users u ON u.id = m.user_id
	JOIN companies c ON c.id = m.company_id`

func AddMembership(ctx context.Context, e sqlx.ExtContext, m *model.Membership) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	m.CreatedAt = now()
	const q = `INSERT INTO memberships (id, company_id, user_id, role, created_at)
		VALUES (:id, :company_id, :user_id, :role, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, e, q, m); err != nil {
		return fmt.Errorf("AddMembership (company: %s, user: %s) failed: %w",
			m.CompanyID, m.UserID, conflictOnUnique(err, "user is already a member of this company"))
	}
	return nil
}

// GetMembership loads a membership of companyID by its id.
func GetMembership(ctx context.Context, q sqlx.QueryerContext, companyID, id string) (*model.Membership, error) {
	var m model.Membership
	err := sqlx.GetContext(ctx, q, &m, membershipSelect+` WHERE m.company_id = ? AND m.id = ?`, companyID, id)
	if err != nil {
		return nil, fmt.Errorf("GetMembership (ID: %s) failed: %w", id, notFoundOnNoRows(err, "membership"))
	}
	return &m, nil
}

// GetUserMembership loads the membership of userID in companyID.
func GetUserMembership(ctx context.Context, q sqlx.QueryerContext, companyID, userID string) (*model.Membership, error) {
	var m model.Membership
	err := sqlx.GetContext(ctx, q, &m, membershipSelect+` WHERE m.company_id = ? AND m.user_id = ?`, companyID, userID)
	if err != nil {
		return nil, fmt.Errorf("GetUserMembership failed: %w", notFoundOnNoRows(err, "membership"))
	}
	return &m, nil
}

// ListUserMemberships returns the memberships of userID in active companies,
// ordered by company name.
func ListUserMemberships(ctx context.Context, q sqlx.QueryerContext, userID string) ([]model.Membership, error) {
	ms := []model.Membership{}
	err := sqlx.SelectContext(ctx, q, &ms, membershipSelect+`
		WHERE m.user_id = ? AND c.status = ?
		ORDER BY c.name, c.id`, userID, model.CompanyActive)
	if err != nil {
		return nil, fmt.Errorf("ListUserMemberships (user: %s) failed: %w", userID, err)
	}
	return ms, nil
}

func CountOwners(ctx context.Context, q sqlx.QueryerContext, companyID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM memberships WHERE company_id = ? AND role = ?`,
		companyID, model.MemberOwner)
	if err != nil {
		return 0, fmt.Errorf("counting owners of %s: %w", companyID, err)
	}
	return n, nil
}

// UpdateMembershipRole changes a role, refusing to demote the last owner.
func UpdateMembershipRole(ctx context.Context, e sqlx.ExtContext, m *model.Membership, role string) error {
	if m.Role == model.MemberOwner && role != model.MemberOwner {
		if err := ensureAnotherOwner(ctx, e, m.CompanyID); err != nil {
			return err
		}
	}
	res, err := e.ExecContext(ctx, `UPDATE memberships SET role = ? WHERE id = ? AND company_id = ?`, role, m.ID, m.CompanyID)
	if err != nil {
		return fmt.Errorf("UpdateMembershipRole (ID: %s) failed: %w", m.ID, err)
	}
	if err := requireAffected(res, "membership"); err != nil {
		return err
	}
	m.Role = role
	return nil
}

// DeleteMembership removes a membership, refusing to remove the last owner.
func DeleteMembership(ctx context.Context, e sqlx.ExtContext, m *model.Membership) error {
	if m.Role == model.MemberOwner {
		if err := ensureAnotherOwner(ctx, e, m.CompanyID); err != nil {
			return err
		}
	}
	res, err := e.ExecContext(ctx, `DELETE FROM memberships WHERE id = ? AND company_id = ?`, m.ID, m.CompanyID)
	if err != nil {
		return fmt.Errorf("DeleteMembership (ID: %s) failed: %w", m.ID, err)
	}
	return requireAffected(res, "membership")
}

func ensureAnotherOwner(ctx context.Context, q sqlx.QueryerContext, companyID string) error {
	owners, err := CountOwners(ctx, q, companyID)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return apperr.New(apperr.EConflict, "a company must keep at least one owner")
	}
	return nil
}
