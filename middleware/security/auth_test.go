package security

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TravelRelay/tools/errs"
	"TravelRelay/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToken_Order(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/speech?token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-bearer")
	assert.Equal(t, "from-query", ExtractToken(r, nil))

	r = httptest.NewRequest(http.MethodGet, "/ws/speech", nil)
	r.Header.Set("Authorization", "Bearer from-bearer")
	assert.Equal(t, "from-bearer", ExtractToken(r, nil))

	r = httptest.NewRequest(http.MethodGet, "/ws/speech", nil)
	r.Header.Set("Authorization", "raw-token")
	assert.Equal(t, "raw-token", ExtractToken(r, nil))

	r = httptest.NewRequest(http.MethodGet, "/ws/speech?token=", nil)
	assert.Equal(t, "", ExtractToken(r, nil))
}

func newAuthRouter(opts security.Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/speech", Handshake(security.NewJWTAuthenticator(opts), nil), func(c *gin.Context) {
		ident, ok := IdentityFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, ident)
	})
	return r
}

func TestHandshake(t *testing.T) {
	opts := security.DefaultOptions([]byte("handshake-secret"))
	router := newAuthRouter(opts)
	userID := uuid.NewString()

	tok, _, err := security.Generate(opts, userID, "carol")
	require.NoError(t, err)

	t.Run("valid token in query", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/speech?token="+tok, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var ident security.Identity
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ident))
		assert.Equal(t, userID, ident.UserID)
		assert.Equal(t, "carol", ident.Username)
	})

	t.Run("missing credential", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/speech", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var body errs.CodeError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, errs.Unauthorized, body.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, _, err := security.Generate(security.DefaultOptions([]byte("other")), userID, "carol")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/ws/speech", nil)
		req.Header.Set("Authorization", "Bearer "+other)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var body errs.CodeError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, errs.TokenInvalidError, body.Code)
	})

	t.Run("expired", func(t *testing.T) {
		short := opts
		short.TTL = time.Millisecond
		expired, _, err := security.Generate(short, userID, "carol")
		require.NoError(t, err)
		time.Sleep(1100 * time.Millisecond)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/speech?token="+expired, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
