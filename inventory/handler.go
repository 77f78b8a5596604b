// Package inventory records stock movements. Every record updates the cached
// product stock in the same transaction.
package inventory

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"github.com/danielzuhad/stocking-app-sub001/activity"
	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/auth"
	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/model"
	"github.com/danielzuhad/stocking-app-sub001/respond"
	"github.com/danielzuhad/stocking-app-sub001/tenant"
)

const maxNoteRunes = 500

// Result is a saved record and the product it moved.
type Result struct {
	Record  *model.InventoryRecord `json:"record"`
	Product *model.Product         `json:"product"`
}

func TableHandler(db *sqlx.DB, opts datatable.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := datatable.Run[model.InventoryRecord](r.Context(), db, Table, r.URL.Query(), tenant.Scope(r.Context()), opts)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, page)
	}
}

func normalizeInput(in model.InventoryInput) (model.InventoryInput, error) {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.Type = strings.ToUpper(strings.TrimSpace(in.Type))
	in.Note = strings.TrimSpace(in.Note)

	fields := map[string]string{}
	if in.ProductID == "" {
		fields["productId"] = "required"
	}
	switch in.Type {
	case model.RecordIn, model.RecordOut:
		if in.Quantity <= 0 {
			fields["quantity"] = "must be greater than 0"
		}
	case model.RecordAdjust:
		if in.Quantity < 0 {
			fields["quantity"] = "must not be negative"
		}
	default:
		fields["type"] = "must be IN, OUT or ADJUST"
	}
	if utf8.RuneCountInString(in.Note) > maxNoteRunes {
		fields["note"] = fmt.Sprintf("must be at most %d characters", maxNoteRunes)
	}
	if len(fields) > 0 {
		return in, apperr.Invalid("invalid inventory record", fields)
	}
	return in, nil
}

// apply computes the signed delta and the resulting stock of a movement.
func apply(p *model.Product, in model.InventoryInput) (delta int64, err error) {
	if p.Status == model.ProductArchived && in.Type != model.RecordAdjust {
		return 0, apperr.Newf(apperr.EConflict, "product %s is archived", p.SKU)
	}
	switch in.Type {
	case model.RecordIn:
		return in.Quantity, nil
	case model.RecordOut:
		if in.Quantity > p.Stock {
			return 0, apperr.Invalid("not enough stock", map[string]string{
				"quantity": fmt.Sprintf("only %d %s in stock", p.Stock, p.Unit),
			})
		}
		return -in.Quantity, nil
	default:
		return in.Quantity - p.Stock, nil
	}
}

// RecordHandler saves an IN, OUT or ADJUST record.
func RecordHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.InventoryInput
		if err := respond.Decode(w, r, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
		in, err := normalizeInput(in)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		companyID := tenant.From(r.Context()).CompanyID()
		user := auth.UserFrom(r.Context())
		var res Result
		err = database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			p, err := database.GetProduct(r.Context(), tx, companyID, in.ProductID)
			if err != nil {
				return err
			}
			delta, err := apply(p, in)
			if err != nil {
				return err
			}
			p.Stock += delta
			if err := database.SetProductStock(r.Context(), tx, companyID, p.ID, p.Stock); err != nil {
				return err
			}

			rec := &model.InventoryRecord{
				CompanyID:   companyID,
				ProductID:   p.ID,
				Type:        in.Type,
				Quantity:    in.Quantity,
				Delta:       delta,
				Balance:     p.Stock,
				Note:        in.Note,
				ProductSKU:  p.SKU,
				ProductName: p.Name,
			}
			if user != nil {
				rec.CreatedBy = sql.NullString{String: user.ID, Valid: true}
				rec.CreatorName = user.Name
			}
			if err := database.InsertInventoryRecord(r.Context(), tx, rec); err != nil {
				return err
			}
			res = Result{Record: rec, Product: p}

			return activity.Record(r.Context(), tx, r, activity.Entry{
				CompanyID:   companyID,
				Action:      "inventory." + strings.ToLower(in.Type),
				EntityType:  "inventory",
				EntityID:    rec.ID,
				Description: describe(rec, p),
				Metadata: model.Metadata{
					"productId": p.ID,
					"sku":       p.SKU,
					"quantity":  in.Quantity,
					"delta":     delta,
					"balance":   p.Stock,
				},
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.Created(w, res)
	}
}

func describe(rec *model.InventoryRecord, p *model.Product) string {
	switch rec.Type {
	case model.RecordIn:
		return fmt.Sprintf("Received %d %s of %s", rec.Quantity, p.Unit, p.SKU)
	case model.RecordOut:
		return fmt.Sprintf("Issued %d %s of %s", rec.Quantity, p.Unit, p.SKU)
	}
	return fmt.Sprintf("Adjusted %s stock to %d (%+d)", p.SKU, rec.Balance, rec.Delta)
}
