// Package product serves the per-company product catalogue.
package product

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/danielzuhad/stocking-app-sub001/activity"
	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/barcode"
	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/model"
	"github.com/danielzuhad/stocking-app-sub001/respond"
	"github.com/danielzuhad/stocking-app-sub001/tenant"
)

const recentRecords = 20

// Detail is a product with its latest inventory records.
type Detail struct {
	*model.Product
	LowStock bool                    `json:"lowStock"`
	Records  []model.InventoryRecord `json:"records"`
}

func TableHandler(db *sqlx.DB, opts datatable.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := datatable.Run[model.Product](r.Context(), db, Table, r.URL.Query(), tenant.Scope(r.Context()), opts)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, page)
	}
}

func CreateHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.ProductInput
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
		p := &model.Product{CompanyID: companyID}
		applyInput(p, in)

		err = database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			if err := database.CreateProduct(r.Context(), tx, p); err != nil {
				return err
			}
			return activity.Record(r.Context(), tx, r, activity.Entry{
				CompanyID:   companyID,
				Action:      "product.create",
				EntityType:  "product",
				EntityID:    p.ID,
				Description: fmt.Sprintf("Created product %s (%s)", p.SKU, p.Name),
				Metadata:    model.Metadata{"sku": p.SKU},
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.Created(w, p)
	}
}

func GetHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID := tenant.From(r.Context()).CompanyID()
		p, err := database.GetProduct(r.Context(), db, companyID, r.PathValue("id"))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		records, err := database.ListProductRecords(r.Context(), db, companyID, p.ID, recentRecords)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, Detail{Product: p, LowStock: p.LowStock(), Records: records})
	}
}

// LookupHandler finds a product by SKU, as typed or scanned. A scanned GS1
// barcode also matches products whose SKU is one of its GTIN spellings.
func LookupHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.PathValue("sku")
		sku := NormalizeSKU(raw)
		if sku == "" {
			respond.Error(w, r, apperr.Invalid("sku is required", map[string]string{"sku": "required"}))
			return
		}
		companyID := tenant.From(r.Context()).CompanyID()

		p, err := database.GetProductBySKU(r.Context(), db, companyID, sku)
		for _, gtin := range barcode.Candidates(raw) {
			if apperr.ErrorCode(err) != apperr.ENotFound {
				break
			}
			if gtin != sku {
				p, err = database.GetProductBySKU(r.Context(), db, companyID, gtin)
			}
		}
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, p)
	}
}

func UpdateHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.ProductInput
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
		var p *model.Product
		err = database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			var err error
			if p, err = database.GetProduct(r.Context(), tx, companyID, r.PathValue("id")); err != nil {
				return err
			}
			before := *p
			applyInput(p, in)
			if err := database.UpdateProduct(r.Context(), tx, p); err != nil {
				return err
			}
			return activity.Record(r.Context(), tx, r, activity.Entry{
				CompanyID:   companyID,
				Action:      "product.update",
				EntityType:  "product",
				EntityID:    p.ID,
				Description: fmt.Sprintf("Updated product %s", p.SKU),
				Metadata:    changes(&before, p),
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, p)
	}
}

type archiveRequest struct {
	Archived *bool `json:"archived"`
}

// ArchiveHandler archives a product, or restores it with {"archived": false}.
// An empty body archives.
func ArchiveHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		archived := true
		var req archiveRequest
		switch err := respond.Decode(w, r, &req); {
		case errors.Is(err, io.EOF):
		case err != nil:
			respond.Error(w, r, err)
			return
		case req.Archived != nil:
			archived = *req.Archived
		}
		status, action := model.ProductArchived, "product.archive"
		if !archived {
			status, action = model.ProductActive, "product.unarchive"
		}

		companyID := tenant.From(r.Context()).CompanyID()
		var p *model.Product
		err := database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			var err error
			if p, err = database.GetProduct(r.Context(), tx, companyID, r.PathValue("id")); err != nil {
				return err
			}
			if p.Status == status {
				return nil
			}
			p.Status = status
			if err := database.UpdateProduct(r.Context(), tx, p); err != nil {
				return err
			}
			return activity.Record(r.Context(), tx, r, activity.Entry{
				CompanyID:   companyID,
				Action:      action,
				EntityType:  "product",
				EntityID:    p.ID,
				Description: fmt.Sprintf("Set product %s to %s", p.SKU, status),
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, p)
	}
}

// DeleteHandler removes a product without inventory history.
func DeleteHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID := tenant.From(r.Context()).CompanyID()
		err := database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			p, err := database.GetProduct(r.Context(), tx, companyID, r.PathValue("id"))
			if err != nil {
				return err
			}
			if err := database.DeleteProduct(r.Context(), tx, companyID, p.ID); err != nil {
				return err
			}
			return activity.Record(r.Context(), tx, r, activity.Entry{
				CompanyID:   companyID,
				Action:      "product.delete",
				EntityType:  "product",
				EntityID:    p.ID,
				Description: fmt.Sprintf("Deleted product %s (%s)", p.SKU, p.Name),
				Metadata:    model.Metadata{"sku": p.SKU},
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, nil)
	}
}

func changes(before, after *model.Product) model.Metadata {
	m := model.Metadata{}
	diff := func(key string, a, b any) {
		if a != b {
			m[key] = map[string]any{"from": a, "to": b}
		}
	}
	diff("sku", before.SKU, after.SKU)
	diff("name", before.Name, after.Name)
	diff("category", before.Category, after.Category)
	diff("unit", before.Unit, after.Unit)
	diff("price", before.Price, after.Price)
	diff("minStock", before.MinStock, after.MinStock)
	diff("imageUrl", before.ImageURL, after.ImageURL)
	return m
}
