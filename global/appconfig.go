package global

import "time"

// AppConfig 进程级配置，对应 config.yaml
type AppConfig struct {
	NodeID  int64         `yaml:"node_id"` // 雪花节点号，同时写入 presence
	Server  ServerConfig  `yaml:"server"`
	Jwt     JwtConfig     `yaml:"jwt"`
	Xunfei  XunfeiConfig  `yaml:"xunfei"`
	Relay   RelayConfig   `yaml:"relay"`
	Redis   RedisConfig   `yaml:"redis"`
	Nats    NatsConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`            // http 监听地址
	WsPath         string   `yaml:"ws_path"`         // 语音识别 websocket 路径
	AllowedOrigins []string `yaml:"allowed_origins"` // 为空或包含 * 时不校验
	DevTokens      bool     `yaml:"dev_tokens"`      // 开启 POST /dev/token（仅开发环境）
}

type JwtConfig struct {
	Secret string        `yaml:"secret"`
	Alg    string        `yaml:"alg"`
	TTL    time.Duration `yaml:"ttl"`
	Leeway time.Duration `yaml:"leeway"`
}

// XunfeiConfig 讯飞语音听写（IAT）接入参数
type XunfeiConfig struct {
	AppID     string `yaml:"app_id"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Host      string `yaml:"host"` // 例如 https://iat-api.xfyun.cn/v2/iat

	Language string `yaml:"language"`
	Domain   string `yaml:"domain"`
	Accent   string `yaml:"accent"`
	VadEos   int    `yaml:"vad_eos"` // 静音多久判定说完（ms）
	Dwa      string `yaml:"dwa"`     // wpgs = 动态修正
	Format   string `yaml:"format"`
	Encoding string `yaml:"encoding"`
}

// RelayConfig 每个会话中继的运行参数
type RelayConfig struct {
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	EndTimeout       time.Duration `yaml:"end_timeout"`        // end 后等待上游关闭的上限
	MaxPendingChunks int           `yaml:"max_pending_chunks"` // 未就绪时音频队列高水位
	MaxMalformed     int           `yaml:"max_malformed"`      // 连续解析失败多少次判定失败
	PingInterval     time.Duration `yaml:"ping_interval"`      // 对客户端的 ping 周期
	PongWait         time.Duration `yaml:"pong_wait"`
	SendQueueSize    int           `yaml:"send_queue_size"` // 每连接下行队列
	MaxMessageSize   int64         `yaml:"max_message_size"`
}

type RedisConfig struct {
	Addr       string        `yaml:"addr"` // 为空时不启用 presence
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	PoolSize   int           `yaml:"pool_size"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	KeyPrefix  string        `yaml:"key_prefix"`
}

type NatsConfig struct {
	URL           string        `yaml:"url"` // 为空时不发布识别结果
	Name          string        `yaml:"name"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
	Timeout       time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}
