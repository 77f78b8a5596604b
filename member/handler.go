// Package member manages who belongs to the active company and with which
// role.
package member

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/danielzuhad/stocking-app-sub001/activity"
	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/model"
	"github.com/danielzuhad/stocking-app-sub001/respond"
	"github.com/danielzuhad/stocking-app-sub001/tenant"
)

var errOwnerOnly = apperr.New(apperr.EForbidden, "only an owner can grant or revoke the owner role")

type roleRequest struct {
	Role string `json:"role"`
}

func normalizeRole(role string) (string, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	if !model.ValidMemberRole(role) {
		return "", apperr.Invalid("invalid role", map[string]string{"role": "must be OWNER, ADMIN, STAFF or VIEWER"})
	}
	return role, nil
}

// checkOwnerChange refuses OWNER grants and revocations by non-owners.
func checkOwnerChange(t *tenant.Tenant, from, to string) error {
	if (from == model.MemberOwner || to == model.MemberOwner) && !t.Can(model.MemberOwner) {
		return errOwnerOnly
	}
	return nil
}

func TableHandler(db *sqlx.DB, opts datatable.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := datatable.Run[model.Membership](r.Context(), db, Table, r.URL.Query(), tenant.Scope(r.Context()), opts)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, page)
	}
}

// AddHandler adds an existing user, found by email, to the active company.
func AddHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.MembershipInput
		if err := respond.Decode(w, r, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
		fields := map[string]string{}
		in.Email = strings.ToLower(strings.TrimSpace(in.Email))
		if in.Email == "" {
			fields["email"] = "required"
		}
		role, err := normalizeRole(in.Role)
		if err != nil {
			fields["role"] = apperr.ErrorFields(err)["role"]
		}
		if len(fields) > 0 {
			respond.Error(w, r, apperr.Invalid("invalid member", fields))
			return
		}

		t := tenant.From(r.Context())
		if err := checkOwnerChange(t, "", role); err != nil {
			respond.Error(w, r, err)
			return
		}

		m := &model.Membership{CompanyID: t.CompanyID(), Role: role}
		err = database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			u, err := database.GetUserByEmail(r.Context(), tx, in.Email)
			if apperr.ErrorCode(err) == apperr.ENotFound {
				return apperr.Invalid("unknown user", map[string]string{"email": "no user with this email"})
			}
			if err != nil {
				return err
			}
			m.UserID, m.UserName, m.UserEmail, m.CompanyName = u.ID, u.Name, u.Email, t.Company.Name
			if err := database.AddMembership(r.Context(), tx, m); err != nil {
				return err
			}
			return activity.Record(r.Context(), tx, r, activity.Entry{
				CompanyID:   m.CompanyID,
				Action:      "membership.create",
				EntityType:  "membership",
				EntityID:    m.ID,
				Description: fmt.Sprintf("Added %s as %s", u.Email, role),
				Metadata:    model.Metadata{"userId": u.ID, "role": role},
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.Created(w, m)
	}
}

// UpdateHandler changes a member's role.
func UpdateHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req roleRequest
		if err := respond.Decode(w, r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		role, err := normalizeRole(req.Role)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		t := tenant.From(r.Context())
		var m *model.Membership
		err = database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			var err error
			if m, err = database.GetMembership(r.Context(), tx, t.CompanyID(), r.PathValue("id")); err != nil {
				return err
			}
			from := m.Role
			if from == role {
				return nil
			}
			if err := checkOwnerChange(t, from, role); err != nil {
				return err
			}
			if err := database.UpdateMembershipRole(r.Context(), tx, m, role); err != nil {
				return err
			}
			return activity.Record(r.Context(), tx, r, activity.Entry{
				CompanyID:   m.CompanyID,
				Action:      "membership.update",
				EntityType:  "membership",
				EntityID:    m.ID,
				Description: fmt.Sprintf("Changed %s from %s to %s", m.UserEmail, from, role),
				Metadata:    model.Metadata{"userId": m.UserID, "role": map[string]any{"from": from, "to": role}},
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, m)
	}
}

// RemoveHandler removes a member from the active company.
func RemoveHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := tenant.From(r.Context())
		err := database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			m, err := database.GetMembership(r.Context(), tx, t.CompanyID(), r.PathValue("id"))
			if err != nil {
				return err
			}
			if err := checkOwnerChange(t, m.Role, ""); err != nil {
				return err
			}
			if err := database.DeleteMembership(r.Context(), tx, m); err != nil {
				return err
			}
			return activity.Record(r.Context(), tx, r, activity.Entry{
				CompanyID:   m.CompanyID,
				Action:      "membership.delete",
				EntityType:  "membership",
				EntityID:    m.ID,
				Description: fmt.Sprintf("Removed %s", m.UserEmail),
				Metadata:    model.Metadata{"userId": m.UserID, "role": m.Role},
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, nil)
	}
}
