package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/auth"
	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/database/dbtest"
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

func TestMain(m *testing.M) {
	auth.HashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func call(t *testing.T, h http.HandlerFunc, as *model.User, id string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(http.MethodPost, "/api/users", &buf)
	r.Header.Set("Content-Type", "application/json")
	if id != "" {
		r.SetPathValue("id", id)
	}
	r = r.WithContext(auth.WithUser(r.Context(), as, nil))
	rec := httptest.NewRecorder()
	h(rec, r)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func addSession(t *testing.T, db *sqlx.DB, u *model.User) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, database.CreateSession(context.Background(), db, &model.Session{
		TokenHash: auth.HashToken(u.ID + now.String()),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}))
}

func countSessions(t *testing.T, db *sqlx.DB, u *model.User) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM sessions WHERE user_id = ?`, u.ID))
	return n
}

func TestCreateHandler(t *testing.T) {
	db := dbtest.New(t)
	root := dbtest.User(t, db, "root@example.test", model.RoleSuperadmin, "")

	code, env := call(t, CreateHandler(db), root, "", model.UserInput{
		Email: " Jane@Example.TEST ", Name: "Jane", Password: "correct horse",
	})
	require.Equal(t, http.StatusCreated, code, string(env.Data))
	var u model.User
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, "jane@example.test", u.Email)
	assert.Equal(t, model.RoleUser, u.SystemRole)
	assert.Equal(t, model.UserActive, u.Status)
	assert.NotContains(t, string(env.Data), "password")

	stored, err := database.GetUser(context.Background(), db, u.ID)
	require.NoError(t, err)
	assert.NoError(t, auth.ComparePassword(stored.PasswordHash, "correct horse"))

	code, env = call(t, CreateHandler(db), root, "", model.UserInput{Email: "jane@example.test", Name: "Jane", Password: "correct horse"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperr.EConflict, env.Error.Code)

	code, env = call(t, CreateHandler(db), root, "", model.UserInput{Email: "not-an-email", Password: "short", SystemRole: "GOD"})
	assert.Equal(t, http.StatusBadRequest, code)
	for _, key := range []string{"email", "name", "password", "systemRole"} {
		assert.Contains(t, env.Error.Fields, key)
	}
}

func TestUpdateHandler(t *testing.T) {
	db := dbtest.New(t)
	root := dbtest.User(t, db, "root@example.test", model.RoleSuperadmin, "")
	jane := dbtest.User(t, db, "jane@example.test", model.RoleUser, "")
	addSession(t, db, jane)

	code, env := call(t, UpdateHandler(db), root, jane.ID, model.UserInput{Name: "Jane D", Status: model.UserDisabled})
	require.Equal(t, http.StatusOK, code, string(env.Data))
	var u model.User
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, "Jane D", u.Name)
	assert.Equal(t, model.UserDisabled, u.Status)
	assert.Zero(t, countSessions(t, db, jane), "disabling a user ends their sessions")

	code, env = call(t, UpdateHandler(db), root, root.ID, model.UserInput{Name: "Root", SystemRole: model.RoleUser})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperr.EConflict, env.Error.Code)

	other := dbtest.User(t, db, "ops@example.test", model.RoleSuperadmin, "")
	code, _ = call(t, UpdateHandler(db), other, root.ID, model.UserInput{Name: "Root", SystemRole: model.RoleUser})
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, UpdateHandler(db), jane, other.ID, model.UserInput{Name: "Ops", Status: model.UserDisabled})
	assert.Equal(t, http.StatusConflict, code, "the last active superadmin stays")
}

func TestPasswordHandler(t *testing.T) {
	db := dbtest.New(t)
	root := dbtest.User(t, db, "root@example.test", model.RoleSuperadmin, "")
	jane := dbtest.User(t, db, "jane@example.test", model.RoleUser, "")
	addSession(t, db, jane)
	addSession(t, db, root)

	code, env := call(t, PasswordHandler(db), root, jane.ID, passwordRequest{Password: "short"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error.Fields, "password")

	code, _ = call(t, PasswordHandler(db), root, jane.ID, passwordRequest{Password: "new password"})
	require.Equal(t, http.StatusOK, code)
	stored, err := database.GetUser(context.Background(), db, jane.ID)
	require.NoError(t, err)
	assert.NoError(t, auth.ComparePassword(stored.PasswordHash, "new password"))
	assert.Zero(t, countSessions(t, db, jane))

	code, _ = call(t, PasswordHandler(db), root, root.ID, passwordRequest{Password: "another password"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, countSessions(t, db, root), "own sessions survive")
}

func TestDeleteHandler(t *testing.T) {
	db := dbtest.New(t)
	root := dbtest.User(t, db, "root@example.test", model.RoleSuperadmin, "")
	jane := dbtest.User(t, db, "jane@example.test", model.RoleUser, "")
	bob := dbtest.User(t, db, "bob@example.test", model.RoleUser, "")
	acme := dbtest.Company(t, db, "Acme", "acme")
	dbtest.Member(t, db, acme, jane, model.MemberOwner)

	code, env := call(t, DeleteHandler(db), root, root.ID, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperr.EConflict, env.Error.Code)

	code, env = call(t, DeleteHandler(db), root, jane.ID, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperr.EConflict, env.Error.Code)

	code, _ = call(t, DeleteHandler(db), root, bob.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	_, err := database.GetUser(context.Background(), db, bob.ID)
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
}

func TestGetAndTable(t *testing.T) {
	db := dbtest.New(t)
	root := dbtest.User(t, db, "root@example.test", model.RoleSuperadmin, "")
	jane := dbtest.User(t, db, "jane@example.test", model.RoleUser, "")
	acme := dbtest.Company(t, db, "Acme", "acme")
	dbtest.Member(t, db, acme, jane, model.MemberStaff)

	code, env := call(t, GetHandler(db), root, jane.ID, nil)
	require.Equal(t, http.StatusOK, code)
	var detail struct {
		Email       string             `json:"email"`
		Memberships []model.Membership `json:"memberships"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, jane.Email, detail.Email)
	require.Len(t, detail.Memberships, 1)
	assert.Equal(t, "Acme", detail.Memberships[0].CompanyName)

	r := httptest.NewRequest(http.MethodGet, "/api/users/table?filter.systemRole=superadmin", nil)
	rec := httptest.NewRecorder()
	TableHandler(db, datatable.Options{})(rec, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var page struct {
		Rows  []model.User `json:"rows"`
		Total int          `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Equal(t, 1, page.Total)
	assert.Equal(t, root.Email, page.Rows[0].Email)
	assert.NotContains(t, rec.Body.String(), "password")
}
