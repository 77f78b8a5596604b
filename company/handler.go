// Package company is the platform administration of tenant companies.
package company

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"github.com/danielzuhad/stocking-app-sub001/activity"
	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/model"
	"github.com/danielzuhad/stocking-app-sub001/respond"
)

func normalizeInput(in model.CompanyInput) (model.CompanyInput, error) {
	in.Name = strings.Join(strings.Fields(in.Name), " ")
	in.Status = strings.ToUpper(strings.TrimSpace(in.Status))
	in.OwnerEmail = strings.ToLower(strings.TrimSpace(in.OwnerEmail))

	fields := map[string]string{}
	if n := utf8.RuneCountInString(in.Name); n < 2 || n > 100 {
		fields["name"] = "must be 2-100 characters"
	}
	switch in.Status {
	case "", model.CompanyActive, model.CompanyInactive:
	default:
		fields["status"] = "must be ACTIVE or INACTIVE"
	}
	if len(fields) > 0 {
		return in, apperr.Invalid("invalid company", fields)
	}
	return in, nil
}

// TableHandler lists all companies. Routed for superadmins only.
func TableHandler(db *sqlx.DB, opts datatable.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := datatable.Run[model.Company](r.Context(), db, Table, r.URL.Query(), datatable.Scope{All: true}, opts)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, page)
	}
}

// CreateHandler creates a company with a derived unique slug and, when
// ownerEmail is given, makes that user its owner.
func CreateHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.CompanyInput
		if err := respond.Decode(w, r, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
		in, err := normalizeInput(in)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		c := &model.Company{Name: in.Name, Status: in.Status}
		err = database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			var owner *model.User
			if in.OwnerEmail != "" {
				u, err := database.GetUserByEmail(r.Context(), tx, in.OwnerEmail)
				if apperr.ErrorCode(err) == apperr.ENotFound {
					return apperr.Invalid("unknown owner", map[string]string{"ownerEmail": "no user with this email"})
				}
				if err != nil {
					return err
				}
				owner = u
			}

			base := Slugify(c.Name)
			taken, err := database.SlugsWithPrefix(r.Context(), tx, slugStem(base))
			if err != nil {
				return err
			}
			c.Slug = uniqueSlug(base, taken)
			if err := database.CreateCompany(r.Context(), tx, c); err != nil {
				return err
			}

			meta := model.Metadata{"slug": c.Slug}
			if owner != nil {
				m := &model.Membership{CompanyID: c.ID, UserID: owner.ID, Role: model.MemberOwner}
				if err := database.AddMembership(r.Context(), tx, m); err != nil {
					return err
				}
				c.MemberCount = 1
				meta["owner"] = owner.Email
			}
			return activity.Record(r.Context(), tx, r, activity.Entry{
				Action:      "company.create",
				EntityType:  "company",
				EntityID:    c.ID,
				Description: fmt.Sprintf("Created company %s", c.Name),
				Metadata:    meta,
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.Created(w, c)
	}
}

func GetHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := database.GetCompany(r.Context(), db, r.PathValue("id"))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, c)
	}
}

// UpdateHandler renames a company or changes its status. The slug is kept.
func UpdateHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.CompanyInput
		if err := respond.Decode(w, r, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
		in, err := normalizeInput(in)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		var c *model.Company
		err = database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			var err error
			if c, err = database.GetCompany(r.Context(), tx, r.PathValue("id")); err != nil {
				return err
			}
			meta := model.Metadata{}
			if c.Name != in.Name {
				meta["name"] = map[string]any{"from": c.Name, "to": in.Name}
				c.Name = in.Name
			}
			if in.Status != "" && c.Status != in.Status {
				meta["status"] = map[string]any{"from": c.Status, "to": in.Status}
				c.Status = in.Status
			}
			if err := database.UpdateCompany(r.Context(), tx, c); err != nil {
				return err
			}
			return activity.Record(r.Context(), tx, r, activity.Entry{
				Action:      "company.update",
				EntityType:  "company",
				EntityID:    c.ID,
				Description: fmt.Sprintf("Updated company %s", c.Name),
				Metadata:    meta,
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, c)
	}
}

// DeleteHandler removes a company that has no products.
func DeleteHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			c, err := database.GetCompany(r.Context(), tx, r.PathValue("id"))
			if err != nil {
				return err
			}
			if err := database.DeleteCompany(r.Context(), tx, c.ID); err != nil {
				return err
			}
			return activity.Record(r.Context(), tx, r, activity.Entry{
				Action:      "company.delete",
				EntityType:  "company",
				EntityID:    c.ID,
				Description: fmt.Sprintf("Deleted company %s", c.Name),
				Metadata:    model.Metadata{"slug": c.Slug},
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, nil)
	}
}
