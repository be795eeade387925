package config

import (
	"TravelRelay/global"
	"TravelRelay/logger"
	mid "TravelRelay/middleware"
	"TravelRelay/service/metrics"
	"TravelRelay/service/natsx"
	"TravelRelay/service/storage"
	redis "TravelRelay/service/storage/redis"
	"TravelRelay/tools/ids"
	"TravelRelay/tools/security"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// 启动期装配，每个函数对应一个可选组件；外部依赖连不上时降级并打日志，不阻止启动

func ConfigIds(cfg *global.AppConfig) {
	logger.Infof("配置id生成 node=%d", cfg.NodeID)
	ids.SetNodeID(cfg.NodeID)
}

func JwtOptions(cfg *global.AppConfig) security.Options {
	opts := security.DefaultOptions([]byte(cfg.Jwt.Secret))
	if cfg.Jwt.Alg != "" {
		opts.Alg = cfg.Jwt.Alg
	}
	if cfg.Jwt.TTL > 0 {
		opts.TTL = cfg.Jwt.TTL
	}
	opts.Leeway = cfg.Jwt.Leeway
	return opts
}

// ConfigMiddleware 注册 IsAuth 路由使用的握手鉴权器和全局中间件
func ConfigMiddleware(cfg *global.AppConfig) {
	mid.Config(security.NewJWTAuthenticator(JwtOptions(cfg)))
	// 重复装配时不叠加
	mid.Manager().Clear()
	mid.Manager().Add(mid.Origin(cfg.Server.AllowedOrigins))
}

// ConfigMetrics 未开启时返回 nil（Collector 对 nil 安全）
func ConfigMetrics(cfg *global.AppConfig) *metrics.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.NewCollector(cfg.Metrics.Namespace, cfg.Metrics.Subsystem, reg)
}

// ConfigRedis redis.addr 为空或连不上时返回 nil
func ConfigRedis(cfg *global.AppConfig) *storage.RedisPresence {
	if cfg.Redis.Addr == "" {
		logger.Infof("redis 未配置，presence 关闭")
		return nil
	}
	if err := redis.InitRedis(cfg.Redis); err != nil {
		logger.Errorf("redis 连接失败，presence 关闭 addr=%s err=%v", cfg.Redis.Addr, err)
		return nil
	}
	logger.Infof("redis 已连接 addr=%s", cfg.Redis.Addr)
	return storage.NewRedisPresence(redis.GetRedis(), storage.PresenceConfig{
		KeyPrefix: cfg.Redis.KeyPrefix,
		TTL:       cfg.Redis.SessionTTL,
	})
}

// ConfigNats nats.url 为空或连不上时返回 nil
func ConfigNats(cfg *global.AppConfig) (*natsx.NatsManager, *natsx.TranscriptPublisher) {
	if cfg.Nats.URL == "" {
		logger.Infof("nats 未配置，识别结果不发布")
		return nil, nil
	}
	mgr, err := natsx.NewNatsManager(natsx.ConfigFrom(cfg.Nats))
	if err != nil {
		logger.Errorf("nats 连接失败 url=%s err=%v", cfg.Nats.URL, err)
		return nil, nil
	}
	pub, err := natsx.NewTranscriptPublisher(mgr, cfg.Nats.SubjectPrefix)
	if err != nil {
		logger.Errorf("nats 路由注册失败 err=%v", err)
		_ = mgr.Close()
		return nil, nil
	}
	logger.Infof("nats 已连接 url=%s subject=%s.*", cfg.Nats.URL, cfg.Nats.SubjectPrefix)
	return mgr, pub
}

func CloseRedis() {
	if err := redis.CloseRedis(); err != nil {
		logger.Warnf("close redis: %v", err)
	}
}
