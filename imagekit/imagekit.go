// Package imagekit signs client-side uploads to ImageKit. The browser uploads
// product images directly; the server only hands out short lived signatures.
package imagekit

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/config"
	"github.com/danielzuhad/stocking-app-sub001/respond"
)

// ErrUnavailable is returned when no ImageKit keys are configured.
var ErrUnavailable = apperr.New(apperr.EUnavailable, "image uploads are not configured")

// Auth is the parameter set the ImageKit upload API expects.
type Auth struct {
	Token       string `json:"token"`
	Expire      int64  `json:"expire"`
	Signature   string `json:"signature"`
	PublicKey   string `json:"publicKey"`
	URLEndpoint string `json:"urlEndpoint"`
}

type Signer struct {
	cfg   config.ImageKitConfig
	clock clock.Clock
}

func NewSigner(cfg config.ImageKitConfig, clk clock.Clock) *Signer {
	if clk == nil {
		clk = clock.New()
	}
	return &Signer{cfg: cfg, clock: clk}
}

// Sign issues a fresh token valid for the configured expiry.
func (s *Signer) Sign() (*Auth, error) {
	if s == nil || !s.cfg.Enabled() {
		return nil, ErrUnavailable
	}
	token := uuid.NewString()
	expire := s.clock.Now().Add(s.cfg.Expire).Unix()
	return &Auth{
		Token:       token,
		Expire:      expire,
		Signature:   signature(s.cfg.PrivateKey, token, expire),
		PublicKey:   s.cfg.PublicKey,
		URLEndpoint: s.cfg.URLEndpoint,
	}, nil
}

// signature is hex(HMAC-SHA1(privateKey, token + expire)).
func signature(privateKey, token string, expire int64) string {
	mac := hmac.New(sha1.New, []byte(privateKey))
	mac.Write([]byte(token + strconv.FormatInt(expire, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) AuthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := s.Sign()
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		respond.OK(w, a)
	}
}
