package model

import "time"

type Session struct {
	ID        string    `db:"id"`
	TokenHash string    `db:"token_hash"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
	IP        string    `db:"ip"`
	UserAgent string    `db:"user_agent"`
}
