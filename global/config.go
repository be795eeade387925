package global

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"TravelRelay/tools"

	"gopkg.in/yaml.v3"
)

const (
	DefaultXunfeiHost = "https://iat-api.xfyun.cn/v2/iat"
	DefaultWsPath     = "/ws/speech"
)

var (
	globalMu  sync.RWMutex
	globalCfg = Default()
)

// Global 当前生效的配置（只读使用）
func Global() *AppConfig {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalCfg
}

// SetGlobal 替换全局配置，测试与启动时使用
func SetGlobal(c *AppConfig) {
	globalMu.Lock()
	globalCfg = c
	globalMu.Unlock()
}

func GetJwtSecret() []byte {
	return []byte(Global().Jwt.Secret)
}

// Default 内置默认配置，业务参数与讯飞听写接入默认值一致
func Default() *AppConfig {
	c := &AppConfig{}
	applyDefaults(c)
	return c
}

// Load 读取 yaml（支持 ${VAR} 展开），path 为空或文件不存在时只用默认值 + 环境变量
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			data = []byte(expandEnvVars(string(data)))
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// 允许只用环境变量启动
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// applyEnv 环境变量优先级高于文件
func applyEnv(c *AppConfig) {
	c.Xunfei.AppID = tools.GetEnv("XUNFEI_APP_ID", c.Xunfei.AppID)
	c.Xunfei.APIKey = tools.GetEnv("XUNFEI_API_KEY", c.Xunfei.APIKey)
	c.Xunfei.APISecret = tools.GetEnv("XUNFEI_API_SECRET", c.Xunfei.APISecret)
	c.Xunfei.Host = tools.GetEnv("XUNFEI_HOST", c.Xunfei.Host)
	c.Jwt.Secret = tools.GetEnv("JWT_SECRET", c.Jwt.Secret)
	c.Server.Addr = tools.GetEnv("HTTP_ADDR", c.Server.Addr)
	c.Redis.Addr = tools.GetEnv("REDIS_ADDR", c.Redis.Addr)
	c.Nats.URL = tools.GetEnv("NATS_URL", c.Nats.URL)
	c.Log.Level = tools.GetEnv("LOG_LEVEL", c.Log.Level)
	c.NodeID = int64(tools.GetEnvInt("NODE_ID", int(c.NodeID)))
}

func applyDefaults(c *AppConfig) {
	if c.NodeID <= 0 {
		c.NodeID = 1
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.WsPath == "" {
		c.Server.WsPath = DefaultWsPath
	}

	if c.Jwt.Alg == "" {
		c.Jwt.Alg = "HS256"
	}
	if c.Jwt.TTL <= 0 {
		c.Jwt.TTL = 24 * time.Hour
	}

	x := &c.Xunfei
	if x.Host == "" {
		x.Host = DefaultXunfeiHost
	}
	if x.Language == "" {
		x.Language = "zh_cn"
	}
	if x.Domain == "" {
		x.Domain = "iat"
	}
	if x.Accent == "" {
		x.Accent = "mandarin"
	}
	if x.VadEos <= 0 {
		x.VadEos = 5000
	}
	if x.Dwa == "" {
		x.Dwa = "wpgs"
	}
	if x.Format == "" {
		x.Format = "audio/L16;rate=16000"
	}
	if x.Encoding == "" {
		x.Encoding = "raw"
	}

	r := &c.Relay
	if r.DialTimeout <= 0 {
		r.DialTimeout = 10 * time.Second
	}
	if r.WriteTimeout <= 0 {
		r.WriteTimeout = 10 * time.Second
	}
	if r.EndTimeout <= 0 {
		r.EndTimeout = 10 * time.Second
	}
	if r.MaxPendingChunks <= 0 {
		r.MaxPendingChunks = 512
	}
	if r.MaxMalformed <= 0 {
		r.MaxMalformed = 5
	}
	if r.PingInterval <= 0 {
		r.PingInterval = 25 * time.Second
	}
	if r.PongWait <= 0 {
		r.PongWait = 75 * time.Second
	}
	if r.SendQueueSize <= 0 {
		r.SendQueueSize = 256
	}
	if r.MaxMessageSize <= 0 {
		r.MaxMessageSize = 1 << 20
	}

	if c.Redis.SessionTTL <= 0 {
		c.Redis.SessionTTL = 2 * time.Hour
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "speech"
	}

	if c.Nats.Name == "" {
		c.Nats.Name = "travel-relay"
	}
	if c.Nats.SubjectPrefix == "" {
		c.Nats.SubjectPrefix = "speech.transcript"
	}
	if c.Nats.ReconnectWait <= 0 {
		c.Nats.ReconnectWait = 500 * time.Millisecond
	}
	if c.Nats.Timeout <= 0 {
		c.Nats.Timeout = 3 * time.Second
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "travel"
	}
	if c.Metrics.Subsystem == "" {
		c.Metrics.Subsystem = "speech_relay"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 启动前的硬性检查
func (c *AppConfig) Validate() error {
	var problems []string

	if c.Jwt.Secret == "" {
		problems = append(problems, "jwt.secret is required")
	}
	if c.Xunfei.AppID == "" {
		problems = append(problems, "xunfei.app_id is required")
	}
	if c.Xunfei.APIKey == "" || c.Xunfei.APISecret == "" {
		problems = append(problems, "xunfei.api_key and xunfei.api_secret are required")
	}
	if !strings.HasPrefix(c.Xunfei.Host, "http://") && !strings.HasPrefix(c.Xunfei.Host, "https://") &&
		!strings.HasPrefix(c.Xunfei.Host, "ws://") && !strings.HasPrefix(c.Xunfei.Host, "wss://") {
		problems = append(problems, fmt.Sprintf("xunfei.host has unsupported scheme: %q", c.Xunfei.Host))
	}
	if c.NodeID > 1023 {
		problems = append(problems, "node_id must be within 0~1023")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
