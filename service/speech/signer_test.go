package speech

import (
	"net/url"
	"testing"
	"time"

	"TravelRelay/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedDate = time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)

const (
	goldenAuthorization = "YXBpX2tleT0idGVzdC1rZXkiLCBhbGdvcml0aG09ImhtYWMtc2hhMjU2IiwgaGVhZGVycz0iaG9zdCBkYXRlIHJlcXVlc3QtbGluZSIsIHNpZ25hdHVyZT0iY1ZlTXZTT3lxQjl5Yk5PaExwQk1LOVBUZzd1aE9zTzJOajd0RFd0UGo1OD0i"
	goldenURL           = "wss://iat-api.xfyun.cn/v2/iat?authorization=" + goldenAuthorization +
		"&date=Mon%2C+02+Jan+2006+15%3A04%3A05+GMT&host=iat-api.xfyun.cn"
)

func TestSignURL_Golden(t *testing.T) {
	got, err := SignURL("https://iat-api.xfyun.cn/v2/iat", "test-key", "test-secret", fixedDate)
	require.NoError(t, err)
	assert.Equal(t, goldenURL, got)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", u.Query().Get("date"))
	assert.Equal(t, "iat-api.xfyun.cn", u.Query().Get("host"))
	assert.Equal(t, goldenAuthorization, u.Query().Get("authorization"))
}

func TestSignURL_Deterministic(t *testing.T) {
	a, err := SignURL("https://iat-api.xfyun.cn/v2/iat", "k", "s", fixedDate)
	require.NoError(t, err)
	b, err := SignURL("https://iat-api.xfyun.cn/v2/iat", "k", "s", fixedDate)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := SignURL("https://iat-api.xfyun.cn/v2/iat", "k", "s", fixedDate.Add(time.Second))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSignURL_NonUTCClock(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	got, err := SignURL("https://iat-api.xfyun.cn/v2/iat", "test-key", "test-secret", fixedDate.In(shanghai))
	require.NoError(t, err)
	assert.Equal(t, goldenURL, got)
}

func TestSignURL_Schemes(t *testing.T) {
	got, err := SignURL("http://127.0.0.1:8089/v2/iat", "k", "s", fixedDate)
	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "ws", u.Scheme)
	assert.Equal(t, "127.0.0.1:8089", u.Host)
	assert.Equal(t, "127.0.0.1", u.Query().Get("host"))

	got, err = SignURL("wss://iat-api.xfyun.cn", "k", "s", fixedDate)
	require.NoError(t, err)
	assert.Contains(t, got, "wss://iat-api.xfyun.cn?authorization=")
}

func TestSignURL_Errors(t *testing.T) {
	cases := map[string][3]string{
		"no key":     {"https://iat-api.xfyun.cn/v2/iat", "", "s"},
		"no secret":  {"https://iat-api.xfyun.cn/v2/iat", "k", ""},
		"bad scheme": {"ftp://iat-api.xfyun.cn/v2/iat", "k", "s"},
		"no host":    {"https:///v2/iat", "k", "s"},
		"bad url":    {"://nope", "k", "s"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := SignURL(in[0], in[1], in[2], fixedDate)
			require.Error(t, err)
			assert.True(t, errs.ErrSignFailed.Is(err))
		})
	}
}

func TestSigner_UsesClock(t *testing.T) {
	s := &Signer{
		HostURL:   "https://iat-api.xfyun.cn/v2/iat",
		APIKey:    "test-key",
		APISecret: "test-secret",
		Now:       func() time.Time { return fixedDate },
	}
	got, err := s.Sign()
	require.NoError(t, err)
	assert.Equal(t, goldenURL, got)
}
