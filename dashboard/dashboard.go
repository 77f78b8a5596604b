// Package dashboard computes the landing page summary of a company.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/model"
	"github.com/danielzuhad/stocking-app-sub001/respond"
	"github.com/danielzuhad/stocking-app-sub001/tenant"
)

const recentActivity = 8

// Summary is the headline numbers of a company. StockValue is in minor
// currency units.
type Summary struct {
	Products       int64               `json:"products"`
	LowStock       int64               `json:"lowStock"`
	StockValue     int64               `json:"stockValue"`
	InToday        int64               `json:"inToday"`
	OutToday       int64               `json:"outToday"`
	RecentActivity []model.ActivityLog `json:"recentActivity"`
}

// Load runs the summary queries concurrently. Days start at midnight UTC.
func Load(ctx context.Context, db *sqlx.DB, companyID string, now time.Time) (*Summary, error) {
	var s Summary
	today := now.UTC().Truncate(24 * time.Hour)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.Products, err = database.CountProducts(ctx, db, companyID)
		return err
	})
	g.Go(func() (err error) {
		s.LowStock, err = database.CountLowStock(ctx, db, companyID)
		return err
	})
	g.Go(func() (err error) {
		s.StockValue, err = database.StockValue(ctx, db, companyID)
		return err
	})
	g.Go(func() (err error) {
		s.InToday, err = database.CountRecordsSince(ctx, db, companyID, model.RecordIn, today)
		return err
	})
	g.Go(func() (err error) {
		s.OutToday, err = database.CountRecordsSince(ctx, db, companyID, model.RecordOut, today)
		return err
	})
	g.Go(func() (err error) {
		s.RecentActivity, err = database.RecentActivity(ctx, db, companyID, recentActivity)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &s, nil
}

func SummaryHandler(db *sqlx.DB, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := Load(r.Context(), db, tenant.From(r.Context()).CompanyID(), clk.Now())
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, s)
	}
}
