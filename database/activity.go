package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/danielzuhad/stocking-app-sub001/model"
)

func InsertActivity(ctx context.Context, e sqlx.ExtContext, a *model.ActivityLog) error {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	const q = `INSERT INTO activity_logs (id, company_id, user_id, action, entity_type, entity_id, description,
			metadata, ip, user_agent, browser, os, created_at)
		VALUES (:id, :company_id, :user_id, :action, :entity_type, :entity_id, :description,
			:metadata, :ip, :user_agent, :browser, :os, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, e, q, a); err != nil {
		return fmt.Errorf("failed to insert activity log (%s): %w", a.Action, err)
	}
	return nil
}

// RecentActivity returns the latest activity of a company.
func RecentActivity(ctx context.Context, q sqlx.QueryerContext, companyID string, limit int) ([]model.ActivityLog, error) {
	logs := []model.ActivityLog{}
	err := sqlx.SelectContext(ctx, q, &logs, `
		SELECT a.id, a.company_id, a.user_id, a.action, a.entity_type, a.entity_id, a.description,
		       a.metadata, a.ip, a.user_agent, a.browser, a.os, a.created_at,
		       COALESCE(u.name, '') AS user_name, COALESCE(c.name, '') AS company_name
		FROM activity_logs a
		LEFT JOIN users u ON u.id = a.user_id
		LEFT JOIN companies c ON c.id = a.company_id
		WHERE a.company_id = ?
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT ?`, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentActivity (company: %s) failed: %w", companyID, err)
	}
	return logs, nil
}
