package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/danielzuhad/stocking-app-sub001/model"
)

func CreateSession(ctx context.Context, e sqlx.ExtContext, s *model.Session) error {
	if s.ID == "" {
		s.ID = NewID()
	}
	const q = `INSERT INTO sessions (id, token_hash, user_id, created_at, expires_at, ip, user_agent)
		VALUES (:id, :token_hash, :user_id, :created_at, :expires_at, :ip, :user_agent)`
	if _, err := sqlx.NamedExecContext(ctx, e, q, s); err != nil {
		return fmt.Errorf("CreateSession (user: %s) failed: %w", s.UserID, err)
	}
	return nil
}

func GetSessionByTokenHash(ctx context.Context, q sqlx.QueryerContext, hash string) (*model.Session, error) {
	var s model.Session
	err := sqlx.GetContext(ctx, q, &s, `SELECT id, token_hash, user_id, created_at, expires_at, ip, user_agent
		FROM sessions WHERE token_hash = ?`, hash)
	if err != nil {
		return nil, fmt.Errorf("GetSessionByTokenHash failed: %w", notFoundOnNoRows(err, "session"))
	}
	return &s, nil
}

func ExtendSession(ctx context.Context, e sqlx.ExecerContext, id string, expiresAt time.Time) error {
	if _, err := e.ExecContext(ctx, `UPDATE sessions SET expires_at = ? WHERE id = ?`, expiresAt.UTC(), id); err != nil {
		return fmt.Errorf("ExtendSession (ID: %s) failed: %w", id, err)
	}
	return nil
}

func DeleteSession(ctx context.Context, e sqlx.ExecerContext, id string) error {
	if _, err := e.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("DeleteSession (ID: %s) failed: %w", id, err)
	}
	return nil
}

func DeleteUserSessions(ctx context.Context, e sqlx.ExecerContext, userID string) error {
	if _, err := e.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("DeleteUserSessions (user: %s) failed: %w", userID, err)
	}
	return nil
}

// DeleteExpiredSessions purges sessions that expired at or before t.
func DeleteExpiredSessions(ctx context.Context, e sqlx.ExecerContext, t time.Time) (int64, error) {
	res, err := e.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("DeleteExpiredSessions failed: %w", err)
	}
	return res.RowsAffected()
}
