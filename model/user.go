package model

import (
	"database/sql"
	"time"
)

const (
	RoleSuperadmin = "SUPERADMIN"
	RoleUser       = "USER"

	UserActive   = "ACTIVE"
	UserDisabled = "DISABLED"
)

type User struct {
	ID           string       `db:"id" json:"id"`
	Email        string       `db:"email" json:"email"`
	Name         string       `db:"name" json:"name"`
	PasswordHash string       `db:"password_hash" json:"-"`
	SystemRole   string       `db:"system_role" json:"systemRole"`
	Status       string       `db:"status" json:"status"`
	LastLoginAt  sql.NullTime `db:"last_login_at" json:"-"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

func (u *User) IsSuperadmin() bool { return u != nil && u.SystemRole == RoleSuperadmin }

func (u *User) IsActive() bool { return u != nil && u.Status == UserActive }

type UserInput struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Password   string `json:"password"`
	SystemRole string `json:"systemRole"`
	Status     string `json:"status"`
}
