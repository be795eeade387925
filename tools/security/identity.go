package security

// Identity 握手阶段解析出的用户身份，整个会话期间不可变
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Authenticator 校验凭证并返回身份（鉴权服务的边界调用）
type Authenticator interface {
	Authenticate(token string) (*Identity, error)
}

// JWTAuthenticator 基于本地 HMAC 密钥校验旅行规划后端签发的 JWT
type JWTAuthenticator struct {
	Opts Options
}

func NewJWTAuthenticator(opts Options) *JWTAuthenticator {
	return &JWTAuthenticator{Opts: opts}
}

func (a *JWTAuthenticator) Authenticate(token string) (*Identity, error) {
	claims, err := Verify(a.Opts, token)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: claims.UserID, Username: claims.Username}, nil
}
