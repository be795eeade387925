package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	midsec "TravelRelay/middleware/security"
	"TravelRelay/service/storage"
	"TravelRelay/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerDevToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	opts := security.DefaultOptions([]byte("dev-secret"))
	r := gin.New()
	r.POST("/dev/token", HandlerDevToken(opts))

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/dev/token", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"username":"frank"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	claims, err := security.Verify(opts, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "frank", claims.Username)

	assert.Equal(t, http.StatusBadRequest, post(`{}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"username":"x","userId":"not-uuid"}`).Code)
}

type fakeLister struct {
	records []storage.SessionRecord
	err     error
}

func (f fakeLister) Sessions(context.Context, string) ([]storage.SessionRecord, error) {
	return f.records, f.err
}

func TestHandlerSessions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	opts := security.DefaultOptions([]byte("s"))
	userID := uuid.NewString()
	tok, _, err := security.Generate(opts, userID, "gina")
	require.NoError(t, err)

	newRouter := func(l SessionLister) *gin.Engine {
		r := gin.New()
		r.GET("/speech/sessions", midsec.Handshake(security.NewJWTAuthenticator(opts), nil), HandlerSessions(l))
		return r
	}

	rec := httptest.NewRecorder()
	newRouter(fakeLister{records: []storage.SessionRecord{{SessionID: "1", UserID: userID}}}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/speech/sessions?token="+tok, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sessionId":"1"`)

	rec = httptest.NewRecorder()
	newRouter(fakeLister{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/speech/sessions?token="+tok, nil))
	assert.Contains(t, rec.Body.String(), `"sessions":[]`)

	rec = httptest.NewRecorder()
	newRouter(fakeLister{err: errors.New("down")}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/speech/sessions?token="+tok, nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
