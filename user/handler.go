// Package user is the platform administration of user accounts.
package user

import (
	"fmt"
	"net/http"
	"net/mail"
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
)

const maxEmailLength = 254

// Detail is a user and the companies they belong to.
type Detail struct {
	*model.User
	Memberships []model.Membership `json:"memberships"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

// normalizeInput checks in for create (password required) or update.
func normalizeInput(in model.UserInput, create bool) (model.UserInput, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.SystemRole = strings.ToUpper(strings.TrimSpace(in.SystemRole))
	in.Status = strings.ToUpper(strings.TrimSpace(in.Status))

	fields := map[string]string{}
	if create {
		if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email || len(in.Email) > maxEmailLength {
			fields["email"] = "must be a valid email address"
		}
		if msg := passwordProblem(in.Password); msg != "" {
			fields["password"] = msg
		}
	}
	if n := utf8.RuneCountInString(in.Name); n == 0 || n > 100 {
		fields["name"] = "must be 1-100 characters"
	}
	switch in.SystemRole {
	case "", model.RoleUser, model.RoleSuperadmin:
	default:
		fields["systemRole"] = "must be SUPERADMIN or USER"
	}
	switch in.Status {
	case "", model.UserActive, model.UserDisabled:
	default:
		fields["status"] = "must be ACTIVE or DISABLED"
	}
	if len(fields) > 0 {
		return in, apperr.Invalid("invalid user", fields)
	}
	return in, nil
}

func passwordProblem(password string) string {
	if err := auth.ValidatePassword(password); err != nil {
		return apperr.ErrorFields(err)["password"]
	}
	return ""
}

func TableHandler(db *sqlx.DB, opts datatable.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := datatable.Run[model.User](r.Context(), db, Table, r.URL.Query(), datatable.Scope{All: true}, opts)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, page)
	}
}

func CreateHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.UserInput
		if err := respond.Decode(w, r, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
		in, err := normalizeInput(in, true)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		u := &model.User{Email: in.Email, Name: in.Name, SystemRole: in.SystemRole, Status: in.Status, PasswordHash: hash}
		err = database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			if err := database.CreateUser(r.Context(), tx, u); err != nil {
				return err
			}
			return activity.Record(r.Context(), tx, r, activity.Entry{
				Action:      "user.create",
				EntityType:  "user",
				EntityID:    u.ID,
				Description: fmt.Sprintf("Created user %s", u.Email),
				Metadata:    model.Metadata{"email": u.Email, "systemRole": u.SystemRole},
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.Created(w, u)
	}
}

func GetHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := database.GetUser(r.Context(), db, r.PathValue("id"))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		ms, err := database.ListUserMemberships(r.Context(), db, u.ID)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, Detail{User: u, Memberships: ms})
	}
}

// UpdateHandler changes name, system role and status. Administrators cannot
// demote or disable themselves, and the platform keeps one active
// superadmin. Disabling a user ends their sessions.
func UpdateHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.UserInput
		if err := respond.Decode(w, r, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
		in, err := normalizeInput(in, false)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		self := auth.UserFrom(r.Context())
		var u *model.User
		err = database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			var err error
			if u, err = database.GetUser(r.Context(), tx, r.PathValue("id")); err != nil {
				return err
			}
			before := *u
			u.Name = in.Name
			if in.SystemRole != "" {
				u.SystemRole = in.SystemRole
			}
			if in.Status != "" {
				u.Status = in.Status
			}

			losesAdmin := before.IsSuperadmin() && before.IsActive() && !(u.IsSuperadmin() && u.IsActive())
			if losesAdmin {
				if self != nil && self.ID == u.ID {
					return apperr.New(apperr.EConflict, "you cannot demote or disable your own account")
				}
				admins, err := database.CountActiveSuperadmins(r.Context(), tx)
				if err != nil {
					return err
				}
				if admins <= 1 {
					return apperr.New(apperr.EConflict, "the platform must keep an active superadmin")
				}
			}

			if err := database.UpdateUser(r.Context(), tx, u); err != nil {
				return err
			}
			if before.Status != u.Status && u.Status == model.UserDisabled {
				if err := database.DeleteUserSessions(r.Context(), tx, u.ID); err != nil {
					return err
				}
			}
			return activity.Record(r.Context(), tx, r, activity.Entry{
				Action:      "user.update",
				EntityType:  "user",
				EntityID:    u.ID,
				Description: fmt.Sprintf("Updated user %s", u.Email),
				Metadata:    changes(&before, u),
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, u)
	}
}

// PasswordHandler sets a new password and signs the user out everywhere,
// unless it is the caller's own account.
func PasswordHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req passwordRequest
		if err := respond.Decode(w, r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		self := auth.UserFrom(r.Context())
		err = database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			u, err := database.GetUser(r.Context(), tx, r.PathValue("id"))
			if err != nil {
				return err
			}
			if err := database.SetUserPasswordHash(r.Context(), tx, u.ID, hash); err != nil {
				return err
			}
			if self == nil || self.ID != u.ID {
				if err := database.DeleteUserSessions(r.Context(), tx, u.ID); err != nil {
					return err
				}
			}
			return activity.Record(r.Context(), tx, r, activity.Entry{
				Action:      "user.password",
				EntityType:  "user",
				EntityID:    u.ID,
				Description: fmt.Sprintf("Reset the password of %s", u.Email),
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, nil)
	}
}

// DeleteHandler removes a user. Deleting yourself or the only owner of a
// company is refused.
func DeleteHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if self := auth.UserFrom(r.Context()); self != nil && self.ID == id {
			respond.Error(w, r, apperr.New(apperr.EConflict, "you cannot delete your own account"))
			return
		}
		err := database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			u, err := database.GetUser(r.Context(), tx, id)
			if err != nil {
				return err
			}
			if u.IsSuperadmin() && u.IsActive() {
				admins, err := database.CountActiveSuperadmins(r.Context(), tx)
				if err != nil {
					return err
				}
				if admins <= 1 {
					return apperr.New(apperr.EConflict, "the platform must keep an active superadmin")
				}
			}
			if err := database.DeleteUser(r.Context(), tx, u.ID); err != nil {
				return err
			}
			return activity.Record(r.Context(), tx, r, activity.Entry{
				Action:      "user.delete",
				EntityType:  "user",
				EntityID:    u.ID,
				Description: fmt.Sprintf("Deleted user %s", u.Email),
				Metadata:    model.Metadata{"email": u.Email},
			})
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, nil)
	}
}

func changes(before, after *model.User) model.Metadata {
	m := model.Metadata{}
	for _, c := range []struct{ key, from, to string }{
		{"name", before.Name, after.Name},
		{"systemRole", before.SystemRole, after.SystemRole},
		{"status", before.Status, after.Status},
	} {
		if c.from != c.to {
			m[c.key] = map[string]any{"from": c.from, "to": c.to}
		}
	}
	return m
}
