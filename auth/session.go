package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

const tokenBytes = 32

var errSessionInvalid = &apperr.Error{Code: apperr.EUnauthorized, Msg: "session is invalid or has expired"}

// SessionService issues and resolves login sessions. Only the SHA-256 of a
// session token is stored.
type SessionService struct {
	db    *sqlx.DB
	ttl   time.Duration
	clock clock.Clock
}

// NewSessionService returns a service issuing sessions valid for ttl.
func NewSessionService(db *sqlx.DB, ttl time.Duration, clk clock.Clock) *SessionService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if clk == nil {
		clk = clock.New()
	}
	return &SessionService{db: db, ttl: ttl, clock: clk}
}

// TTL is the lifetime of a fresh session.
func (s *SessionService) TTL() time.Duration { return s.ttl }

// Login checks the credentials and opens a session. Expired sessions are
// purged on the way.
func (s *SessionService) Login(ctx context.Context, email, password, ip, userAgent string) (string, *model.Session, *model.User, error) {
	u, err := database.GetUserByEmail(ctx, s.db, email)
	if err != nil {
		if apperr.ErrorCode(err) == apperr.ENotFound {
			// Spend the same time as a real comparison.
			ComparePassword(dummyHash(), password)
			return "", nil, nil, ErrIncorrectCredentials
		}
		return "", nil, nil, err
	}
	if err := ComparePassword(u.PasswordHash, password); err != nil {
		return "", nil, nil, err
	}
	if !u.IsActive() {
		return "", nil, nil, apperr.New(apperr.EForbidden, "this account is disabled")
	}

	if n, err := database.DeleteExpiredSessions(ctx, s.db, s.clock.Now()); err != nil {
		zap.L().Warn("purging expired sessions", zap.Error(err))
	} else if n > 0 {
		zap.L().Debug("purged expired sessions", zap.Int64("count", n))
	}

	token, sess, err := s.Create(ctx, u.ID, ip, userAgent)
	if err != nil {
		return "", nil, nil, err
	}
	if err := database.TouchUserLogin(ctx, s.db, u.ID, sess.CreatedAt); err != nil {
		return "", nil, nil, err
	}
	return token, sess, u, nil
}

// Create opens a session for userID and returns its raw token.
func (s *SessionService) Create(ctx context.Context, userID, ip, userAgent string) (string, *model.Session, error) {
	token, err := newToken()
	if err != nil {
		return "", nil, err
	}
	now := s.clock.Now().UTC()
	sess := &model.Session{
		TokenHash: HashToken(token),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		IP:        ip,
		UserAgent: truncate(userAgent, 512),
	}
	if err := database.CreateSession(ctx, s.db, sess); err != nil {
		return "", nil, err
	}
	return token, sess, nil
}

// Resolve returns the active user behind token. Sessions past half of their
// lifetime are extended; renewed reports whether that happened so the caller
// can refresh the cookie.
func (s *SessionService) Resolve(ctx context.Context, token string) (u *model.User, sess *model.Session, renewed bool, err error) {
	if token == "" {
		return nil, nil, false, errSessionInvalid
	}
	sess, err = database.GetSessionByTokenHash(ctx, s.db, HashToken(token))
	if err != nil {
		if apperr.ErrorCode(err) == apperr.ENotFound {
			return nil, nil, false, errSessionInvalid
		}
		return nil, nil, false, err
	}

	now := s.clock.Now().UTC()
	if !now.Before(sess.ExpiresAt) {
		if err := database.DeleteSession(ctx, s.db, sess.ID); err != nil {
			zap.L().Warn("deleting expired session", zap.Error(err))
		}
		return nil, nil, false, errSessionInvalid
	}

	u, err = database.GetUser(ctx, s.db, sess.UserID)
	if err != nil {
		if apperr.ErrorCode(err) == apperr.ENotFound {
			return nil, nil, false, errSessionInvalid
		}
		return nil, nil, false, err
	}
	if !u.IsActive() {
		return nil, nil, false, errSessionInvalid
	}

	if sess.ExpiresAt.Sub(now) < s.ttl/2 {
		expires := now.Add(s.ttl)
		if err := database.ExtendSession(ctx, s.db, sess.ID, expires); err != nil {
			return nil, nil, false, err
		}
		sess.ExpiresAt = expires
		renewed = true
	}
	return u, sess, renewed, nil
}

// Logout deletes the session behind token. Unknown tokens are ignored.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	sess, err := database.GetSessionByTokenHash(ctx, s.db, HashToken(token))
	if err != nil {
		if apperr.ErrorCode(err) == apperr.ENotFound {
			return nil
		}
		return err
	}
	return database.DeleteSession(ctx, s.db, sess.ID)
}

// HashToken returns the hex SHA-256 of a raw session token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// dummyHash is compared against when the email is unknown.
var dummyHash = sync.OnceValue(func() string {
	h, _ := bcrypt.GenerateFromPassword([]byte("stockly-unknown-user"), HashCost)
	return string(h)
})
