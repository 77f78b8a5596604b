package model

import "time"

const (
	CompanyActive   = "ACTIVE"
	CompanyInactive = "INACTIVE"
)

type Company struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
	MemberCount int       `db:"member_count" json:"memberCount"`
}

type CompanyInput struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	OwnerEmail string `json:"ownerEmail"`
}
