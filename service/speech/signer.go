package speech

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TravelRelay/global"
	"TravelRelay/tools/errs"
)

const (
	signAlgorithm = "hmac-sha256"
	signHeaders   = "host date request-line"
)

// URLSigner 每次 start 前生成一次签名 URL
type URLSigner interface {
	Sign() (string, error)
}

// Signer 讯飞 HMAC-SHA256 鉴权 URL
type Signer struct {
	HostURL   string
	APIKey    string
	APISecret string
	Now       func() time.Time
}

func NewSigner(cfg global.XunfeiConfig) *Signer {
	return &Signer{
		HostURL:   cfg.Host,
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		Now:       time.Now,
	}
}

func (s *Signer) Sign() (string, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return SignURL(s.HostURL, s.APIKey, s.APISecret, now())
}

// SignURL 纯函数：同样的输入得到逐字节相同的 URL。
//
//	canonical = "host: {host}\ndate: {date}\nGET {path} HTTP/1.1"
//	signature = base64(hmac_sha256(secret, canonical))
//	authorization = base64(`api_key="..", algorithm="hmac-sha256", headers="host date request-line", signature=".."`)
//
// 返回的 URL 协议改写为 ws/wss，query 带 authorization、date、host。
func SignURL(hostURL, apiKey, apiSecret string, now time.Time) (string, error) {
	if apiKey == "" || apiSecret == "" {
		return "", errs.ErrSignFailed.WrapMsg("missing api credentials")
	}
	u, err := url.Parse(hostURL)
	if err != nil {
		return "", errs.ErrSignFailed.WrapMsg("parse host url", "url", hostURL, "err", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errs.ErrSignFailed.WrapMsg("unsupported scheme", "url", hostURL)
	}
	host := u.Hostname()
	if host == "" {
		return "", errs.ErrSignFailed.WrapMsg("host url has no host", "url", hostURL)
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	date := now.UTC().Format(http.TimeFormat)
	canonical := fmt.Sprintf("host: %s\ndate: %s\nGET %s HTTP/1.1", host, date, path)

	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(canonical))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	origin := fmt.Sprintf(`api_key="%s", algorithm="%s", headers="%s", signature="%s"`,
		apiKey, signAlgorithm, signHeaders, signature)

	q := url.Values{}
	q.Set("authorization", base64.StdEncoding.EncodeToString([]byte(origin)))
	q.Set("date", date)
	q.Set("host", host)
	if u.RawQuery != "" {
		u.RawQuery += "&" + q.Encode()
	} else {
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
