package model

import "time"

// Membership roles, lowest first.
const (
	MemberViewer = "VIEWER"
	MemberStaff  = "STAFF"
	MemberAdmin  = "ADMIN"
	MemberOwner  = "OWNER"
)

var memberRank = map[string]int{
	MemberViewer: 1,
	MemberStaff:  2,
	MemberAdmin:  3,
	MemberOwner:  4,
}

// ValidMemberRole reports whether role is one of the membership roles.
func ValidMemberRole(role string) bool {
	_, ok := memberRank[role]
	return ok
}

// RoleAtLeast reports whether role ranks at or above min.
func RoleAtLeast(role, min string) bool {
	r, ok := memberRank[role]
	return ok && r >= memberRank[min]
}

type Membership struct {
	ID          string    `db:"id" json:"id"`
	CompanyID   string    `db:"company_id" json:"companyId"`
	UserID      string    `db:"user_id" json:"userId"`
	Role        string    `db:"role" json:"role"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UserName    string    `db:"user_name" json:"userName"`
	UserEmail   string    `db:"user_email" json:"userEmail"`
	CompanyName string    `db:"company_name" json:"companyName"`
}

type MembershipInput struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}
