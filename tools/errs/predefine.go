package errs

// 通用
const (
	ServerInternalError = 500
	ArgsError           = 400
	Unauthorized        = 401
)

// 鉴权
const (
	TokenInvalidError = 1005
	TokenExpiredError = 1006
)

// 会话
const (
	SessionExistsError   = 2001
	SessionNotFoundError = 2002
)

// 上游（语音识别服务）
const (
	SignFailedError        = 3001
	UpstreamDialError      = 3002
	UpstreamClosedError    = 3003
	ProviderError          = 3004
	UpstreamMalformedError = 3005
	AudioOverflowError     = 3006
	UpstreamWriteError     = 3007
)

var (
	ErrInternal      = NewCodeError(ServerInternalError, "internal server error")
	ErrArgs          = NewCodeError(ArgsError, "invalid argument")
	ErrUnauthorized  = NewCodeError(Unauthorized, "unauthorized")
	ErrTokenInvalid  = NewCodeError(TokenInvalidError, "invalid token")
	ErrTokenExpired  = NewCodeError(TokenExpiredError, "token expired")
	ErrSessionExists = NewCodeError(SessionExistsError, "session already exists")
	ErrSessionGone   = NewCodeError(SessionNotFoundError, "session not found")

	ErrSignFailed        = NewCodeError(SignFailedError, "sign upstream url failed")
	ErrUpstreamDial      = NewCodeError(UpstreamDialError, "connect speech service failed")
	ErrUpstreamClosed    = NewCodeError(UpstreamClosedError, "speech service connection lost")
	ErrProvider          = NewCodeError(ProviderError, "speech recognition error")
	ErrUpstreamMalformed = NewCodeError(UpstreamMalformedError, "malformed speech service message")
	ErrAudioOverflow     = NewCodeError(AudioOverflowError, "audio buffer full, chunk dropped")
	ErrUpstreamWrite     = NewCodeError(UpstreamWriteError, "send to speech service failed")
)
