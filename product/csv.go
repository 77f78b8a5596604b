package product

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/danielzuhad/stocking-app-sub001/activity"
	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/model"
	"github.com/danielzuhad/stocking-app-sub001/parsers"
	"github.com/danielzuhad/stocking-app-sub001/respond"
	"github.com/danielzuhad/stocking-app-sub001/tenant"
)

const (
	// MaxImportBytes caps uploaded CSV files.
	MaxImportBytes = 5 << 20
	maxExportRows  = 50000
)

// ImportResult summarises a CSV import.
type ImportResult struct {
	Created int                `json:"created"`
	Updated int                `json:"updated"`
	Errors  []parsers.RowError `json:"errors"`
}

// ImportHandler upserts products by SKU from an uploaded CSV ("file" field,
// optional "encoding"). Valid rows are applied in one transaction; invalid
// rows are reported and skipped.
func ImportHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxImportBytes+1<<20)
		file, _, err := r.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				respond.Error(w, r, apperr.New(apperr.EInvalid, "the file is larger than 5 MiB"))
				return
			}
			respond.Error(w, r, apperr.Invalid("a CSV file is required", map[string]string{"file": "required"}))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, MaxImportBytes+1))
		if err != nil {
			respond.Error(w, r, fmt.Errorf("reading upload: %w", err))
			return
		}
		if len(data) > MaxImportBytes {
			respond.Error(w, r, apperr.New(apperr.EInvalid, "the file is larger than 5 MiB"))
			return
		}
		if !parsers.IsCSV(data) {
			respond.Error(w, r, apperr.Invalid("the file is not a CSV file", map[string]string{"file": "must be a CSV file"}))
			return
		}
		text, err := parsers.DecodeText(data, r.FormValue("encoding"))
		if err != nil {
			respond.Error(w, r, apperr.Invalid(err.Error(), map[string]string{"encoding": err.Error()}))
			return
		}
		records, rowErrs, err := parsers.ParseProductCSV(text)
		if err != nil {
			respond.Error(w, r, apperr.Wrap(err, apperr.EInvalid, err.Error()))
			return
		}

		companyID := tenant.From(r.Context()).CompanyID()
		products, invalid := validateRows(companyID, records)
		result := ImportResult{Errors: append(rowErrs, invalid...)}

		if len(products) > 0 {
			err = database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
				for _, p := range products {
					created, err := database.UpsertProductBySKU(r.Context(), tx, p)
					if err != nil {
						return fmt.Errorf("importing %s: %w", p.SKU, err)
					}
					if created {
						result.Created++
					} else {
						result.Updated++
					}
				}
				return activity.Record(r.Context(), tx, r, activity.Entry{
					CompanyID:   companyID,
					Action:      "product.import",
					EntityType:  "product",
					Description: fmt.Sprintf("Imported products: %d created, %d updated", result.Created, result.Updated),
					Metadata: model.Metadata{
						"created": result.Created,
						"updated": result.Updated,
						"errors":  len(result.Errors),
					},
				})
			})
			if err != nil {
				respond.Error(w, r, err)
				return
			}
		}
		sortRowErrors(result.Errors)
		if result.Errors == nil {
			result.Errors = []parsers.RowError{}
		}
		zap.L().Info("product import",
			zap.String("company", companyID),
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Int("errors", len(result.Errors)))
		respond.OK(w, result)
	}
}

func validateRows(companyID string, records []parsers.ParsedProductCSVRecord) ([]*model.Product, []parsers.RowError) {
	var products []*model.Product
	var rowErrs []parsers.RowError
	seen := map[string]int{}
	for _, rec := range records {
		in, err := normalizeInput(model.ProductInput{
			SKU:      rec.SKU,
			Name:     rec.Name,
			Category: rec.Category,
			Unit:     rec.Unit,
			Price:    rec.Price,
			MinStock: rec.MinStock,
		})
		if err != nil {
			rowErrs = append(rowErrs, parsers.RowError{Line: rec.Line, Message: fieldSummary(err)})
			continue
		}
		if first, dup := seen[in.SKU]; dup {
			rowErrs = append(rowErrs, parsers.RowError{
				Line:    rec.Line,
				Message: fmt.Sprintf("duplicate SKU %s, first seen on line %d", in.SKU, first),
			})
			continue
		}
		seen[in.SKU] = rec.Line
		p := &model.Product{CompanyID: companyID}
		applyInput(p, in)
		products = append(products, p)
	}
	return products, rowErrs
}

func fieldSummary(err error) string {
	fields := apperr.ErrorFields(err)
	if len(fields) == 0 {
		return apperr.ErrorMessage(err)
	}
	var buf bytes.Buffer
	for _, key := range []string{"sku", "name", "category", "unit", "price", "minStock"} {
		if msg, ok := fields[key]; ok {
			if buf.Len() > 0 {
				buf.WriteString("; ")
			}
			buf.WriteString(key + ": " + msg)
		}
	}
	return buf.String()
}

func sortRowErrors(errs []parsers.RowError) {
	for i := 1; i < len(errs); i++ {
		for j := i; j > 0 && errs[j].Line < errs[j-1].Line; j-- {
			errs[j], errs[j-1] = errs[j-1], errs[j]
		}
	}
}

// ExportHandler streams the filtered, sorted product table as CSV.
func ExportHandler(db *sqlx.DB, opts datatable.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := datatable.Parse(Table, r.URL.Query(), opts)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		products, err := datatable.All[model.Product](r.Context(), db, Table, s, tenant.Scope(r.Context()), maxExportRows)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		rows := make([][]string, len(products))
		for i, p := range products {
			rows[i] = []string{
				p.SKU, p.Name, p.Category, p.Unit,
				parsers.FormatPrice(p.Price), strconv.FormatInt(p.MinStock, 10),
			}
		}

		filename := fmt.Sprintf("products-%s.csv", time.Now().UTC().Format("20060102"))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		if err := parsers.WriteProductCSV(w, rows); err != nil {
			zap.L().Warn("writing product export", zap.Error(err))
		}
	}
}
