// Package activity records the audit trail of mutating operations and lists
// it per company or platform wide.
package activity

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/jmoiron/sqlx"
	ua "github.com/mileusna/useragent"

	"github.com/danielzuhad/stocking-app-sub001/auth"
	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

// Entry describes one mutating operation.
type Entry struct {
	CompanyID   string
	Action      string
	EntityType  string
	EntityID    string
	Description string
	Metadata    model.Metadata
}

// New builds the log row for e as performed by the signed in user of r.
func New(r *http.Request, e Entry) *model.ActivityLog {
	a := &model.ActivityLog{
		Action:      e.Action,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Description: e.Description,
		Metadata:    e.Metadata,
		IP:          auth.ClientIP(r),
		UserAgent:   truncate(r.UserAgent(), 512),
	}
	if e.CompanyID != "" {
		a.CompanyID = sql.NullString{String: e.CompanyID, Valid: true}
	}
	if u := auth.UserFrom(r.Context()); u != nil {
		a.UserID = sql.NullString{String: u.ID, Valid: true}
	}
	a.Browser, a.OS = parseUserAgent(a.UserAgent)
	return a
}

// Record writes e, usually inside the transaction of the change it
// describes.
func Record(ctx context.Context, e sqlx.ExtContext, r *http.Request, entry Entry) error {
	return database.InsertActivity(ctx, e, New(r, entry))
}

func parseUserAgent(header string) (browser, os string) {
	if header == "" {
		return "", ""
	}
	agent := ua.Parse(header)
	browser = agent.Name
	if browser != "" && agent.Version != "" {
		browser += " " + agent.Version
	}
	os = agent.OS
	if os != "" && agent.OSVersion != "" {
		os += " " + agent.OSVersion
	}
	return browser, os
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
