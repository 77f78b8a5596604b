package imagekit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/config"
)

func TestSignature(t *testing.T) {
	got := signature("private_secret", "5f9c6c2e-2f3a-4a7b-9d3e-1c2b3a4d5e6f", 1717236400)
	assert.Equal(t, "5abb971ca1cad80de8cef313a9471257143b5f88", got)
}

func TestSign(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	s := NewSigner(config.ImageKitConfig{
		PublicKey:   "public_key",
		PrivateKey:  "private_secret",
		URLEndpoint: "https://ik.imagekit.io/stockly",
		Expire:      30 * time.Minute,
	}, clk)

	a, err := s.Sign()
	require.NoError(t, err)
	_, err = uuid.Parse(a.Token)
	assert.NoError(t, err)
	assert.Equal(t, int64(1717234200), a.Expire)
	assert.Equal(t, signature("private_secret", a.Token, a.Expire), a.Signature)
	assert.Equal(t, "public_key", a.PublicKey)

	b, err := s.Sign()
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
}

func TestAuthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewSigner(config.ImageKitConfig{}, nil).AuthHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/imagekit/auth", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var env struct {
		OK    bool `json:"ok"`
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.OK)
	assert.Equal(t, apperr.EUnavailable, env.Error.Code)

	rec = httptest.NewRecorder()
	NewSigner(config.ImageKitConfig{PublicKey: "pk", PrivateKey: "sk", Expire: time.Minute}, nil).
		AuthHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/imagekit/auth", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
