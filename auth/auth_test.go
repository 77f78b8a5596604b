package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/database/dbtest"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

const cookieName = "stockly_session"

func TestMain(m *testing.M) {
	HashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

var epoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db    *sqlx.DB
	clock *clock.Mock
	auth  *Authenticator
	user  *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	mock := clock.NewMock()
	mock.Set(epoch)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	u := dbtest.User(t, db, "jane@example.test", model.RoleUser, hash)

	return &fixture{
		db:    db,
		clock: mock,
		user:  u,
		auth: &Authenticator{
			Sessions:   NewSessionService(db, 24*time.Hour, mock),
			Limiter:    NewLoginLimiter(5, 5, mock),
			CookieName: cookieName,
		},
	}
}

func TestPasswords(t *testing.T) {
	_, err := HashPassword("short")
	assert.Equal(t, ErrShortPassword, err)
	_, err = HashPassword(strings.Repeat("x", 73))
	assert.Equal(t, ErrLongPassword, err)

	hash, err := HashPassword("long enough")
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "long enough"))
	assert.Equal(t, ErrIncorrectCredentials, ComparePassword(hash, "wrong password"))
	assert.Equal(t, apperr.EUnauthorized, apperr.ErrorCode(ComparePassword("not-a-hash", "whatever")))
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.auth.Sessions

	_, _, _, err := svc.Login(ctx, "jane@example.test", "nope nope", "127.0.0.1", "test")
	assert.Equal(t, ErrIncorrectCredentials, err)
	_, _, _, err = svc.Login(ctx, "nobody@example.test", "correct horse", "127.0.0.1", "test")
	assert.Equal(t, ErrIncorrectCredentials, err)

	token, sess, u, err := svc.Login(ctx, "JANE@example.test", "correct horse", "127.0.0.1", "test")
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, u.ID)
	assert.Equal(t, HashToken(token), sess.TokenHash)
	assert.NotEqual(t, token, sess.TokenHash)
	assert.True(t, epoch.Add(24*time.Hour).Equal(sess.ExpiresAt))

	stored, err := database.GetUser(ctx, f.db, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastLoginAt.Valid)

	got, _, renewed, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.False(t, renewed)

	f.clock.Add(13 * time.Hour)
	_, resolved, renewed, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	assert.True(t, renewed, "sessions past half their lifetime slide forward")
	assert.True(t, f.clock.Now().Add(24*time.Hour).Equal(resolved.ExpiresAt))

	f.clock.Add(25 * time.Hour)
	_, _, _, err = svc.Resolve(ctx, token)
	assert.Equal(t, apperr.EUnauthorized, apperr.ErrorCode(err))

	_, err = database.GetSessionByTokenHash(ctx, f.db, HashToken(token))
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err), "expired sessions are deleted when seen")
}

func TestDisabledUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.auth.Sessions

	token, _, _, err := svc.Login(ctx, f.user.Email, "correct horse", "", "")
	require.NoError(t, err)

	f.user.Status = model.UserDisabled
	require.NoError(t, database.UpdateUser(ctx, f.db, f.user))

	_, _, _, err = svc.Resolve(ctx, token)
	assert.Equal(t, apperr.EUnauthorized, apperr.ErrorCode(err))

	_, _, _, err = svc.Login(ctx, f.user.Email, "correct horse", "", "")
	assert.Equal(t, apperr.EForbidden, apperr.ErrorCode(err))
}

func TestLoginPurgesExpiredSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.auth.Sessions

	old, _, err := svc.Create(ctx, f.user.ID, "", "")
	require.NoError(t, err)
	f.clock.Add(48 * time.Hour)

	_, _, _, err = svc.Login(ctx, f.user.Email, "correct horse", "", "")
	require.NoError(t, err)
	_, err = database.GetSessionByTokenHash(ctx, f.db, HashToken(old))
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
}

func TestLoginLimiter(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(epoch)
	l := NewLoginLimiter(2, 2, mock)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "limits are per IP")

	mock.Add(30 * time.Second)
	assert.True(t, l.Allow("10.0.0.1"))

	mock.Add(time.Hour)
	l.mu.Lock()
	l.prune(mock.Now())
	l.mu.Unlock()
	assert.Equal(t, 0, l.size())
}

func newLoginRequest(t *testing.T, body string, jsonBody bool) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	if jsonBody {
		r.Header.Set("Content-Type", "application/json")
	} else {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return r
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func TestLoginHandler(t *testing.T) {
	f := newFixture(t)
	h := f.auth.LoginHandler()

	t.Run("json success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h(rec, newLoginRequest(t, `{"email":"jane@example.test","password":"correct horse"}`, true))
		require.Equal(t, http.StatusOK, rec.Code)
		c := sessionCookie(t, rec)
		require.NotNil(t, c)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.NotContains(t, rec.Body.String(), "password")
	})

	t.Run("json bad password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h(rec, newLoginRequest(t, `{"email":"jane@example.test","password":"wrong"}`, true))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, sessionCookie(t, rec))
	})

	t.Run("form success redirects to next", func(t *testing.T) {
		form := url.Values{"email": {"jane@example.test"}, "password": {"correct horse"}, "next": {"/products"}}
		rec := httptest.NewRecorder()
		h(rec, newLoginRequest(t, form.Encode(), false))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/products", rec.Header().Get("Location"))
	})

	t.Run("form rejects open redirects", func(t *testing.T) {
		form := url.Values{"email": {"jane@example.test"}, "password": {"correct horse"}, "next": {"//evil.test"}}
		rec := httptest.NewRecorder()
		h(rec, newLoginRequest(t, form.Encode(), false))
		assert.Equal(t, "/", rec.Header().Get("Location"))
	})

	t.Run("form failure", func(t *testing.T) {
		form := url.Values{"email": {"jane@example.test"}}
		rec := httptest.NewRecorder()
		h(rec, newLoginRequest(t, form.Encode(), false))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login?error=missing", rec.Header().Get("Location"))
	})
}

func TestLoginHandlerRateLimit(t *testing.T) {
	f := newFixture(t)
	f.auth.Limiter = NewLoginLimiter(1, 1, f.clock)
	h := f.auth.LoginHandler()

	body := `{"email":"jane@example.test","password":"wrong"}`
	rec := httptest.NewRecorder()
	h(rec, newLoginRequest(t, body, true))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, newLoginRequest(t, body, true))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRequireUser(t *testing.T) {
	f := newFixture(t)
	token, _, _, err := f.auth.Sessions.Login(context.Background(), f.user.Email, "correct horse", "", "")
	require.NoError(t, err)

	var seen *model.User
	h := f.auth.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("page without session redirects", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products?page=2", nil))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login?next="+url.QueryEscape("/products?page=2"), rec.Header().Get("Location"))
	})

	t.Run("api without session is unauthorized", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/table", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bogus cookie is cleared", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/products/table", nil)
		r.AddCookie(&http.Cookie{Name: cookieName, Value: "bogus"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		c := sessionCookie(t, rec)
		require.NotNil(t, c)
		assert.Less(t, c.MaxAge, 0)
	})

	t.Run("valid session", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/products/table", nil)
		r.AddCookie(&http.Cookie{Name: cookieName, Value: token})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, f.user.ID, seen.ID)
		assert.Nil(t, sessionCookie(t, rec), "fresh sessions are not re-issued")
	})

	t.Run("renewal refreshes the cookie", func(t *testing.T) {
		f.clock.Add(20 * time.Hour)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: cookieName, Value: token})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		c := sessionCookie(t, rec)
		require.NotNil(t, c)
		assert.Equal(t, token, c.Value)
	})
}

func TestRequireSuperadmin(t *testing.T) {
	h := RequireSuperadmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, tt := range []struct {
		role string
		want int
	}{
		{model.RoleUser, http.StatusForbidden},
		{model.RoleSuperadmin, http.StatusNoContent},
	} {
		r := httptest.NewRequest(http.MethodGet, "/api/users/table", nil)
		r = r.WithContext(WithUser(r.Context(), &model.User{ID: "u", SystemRole: tt.role}, nil))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, tt.want, rec.Code, tt.role)
	}
}

func TestLogoutHandler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token, _, _, err := f.auth.Sessions.Login(ctx, f.user.Email, "correct horse", "", "")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/logout", nil)
	r.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	rec := httptest.NewRecorder()
	f.auth.LogoutHandler()(rec, r)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	_, _, _, err = f.auth.Sessions.Resolve(ctx, token)
	assert.Equal(t, apperr.EUnauthorized, apperr.ErrorCode(err))
}
