package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TravelRelay/global"
	"TravelRelay/global/config"
	"TravelRelay/logger"
	mid "TravelRelay/middleware"
	"TravelRelay/module/user"
	"TravelRelay/service/speech"
	"TravelRelay/tools"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env 可选
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf(".env load failed: %v", err)
	}

	cfg, err := global.Load(tools.GetEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		logger.Errorf("load config failed: %v", err)
		os.Exit(1)
	}
	global.SetGlobal(cfg)
	logger.SetLevel(cfg.Log.Level)
	defer logger.Sync()

	// 1) 基础组件
	config.ConfigIds(cfg)
	config.ConfigMiddleware(cfg)
	collector := config.ConfigMetrics(cfg)

	deps := speech.Deps{
		NodeID:  cfg.NodeID,
		Xunfei:  cfg.Xunfei,
		Relay:   cfg.Relay,
		Signer:  speech.NewSigner(cfg.Xunfei),
		Dialer:  speech.NewWSDialer(cfg.Relay.DialTimeout),
		Metrics: collector,
	}

	// 2) 可选：presence / 识别结果发布
	presence := config.ConfigRedis(cfg)
	if presence != nil {
		deps.Presence = presence
		defer config.CloseRedis()
	}
	natsMgr, publisher := config.ConfigNats(cfg)
	if publisher != nil {
		deps.Sink = publisher
		defer func() { _ = natsMgr.Close() }()
	}

	registry := speech.NewRegistry(deps)
	gw := speech.NewGateway(registry, cfg.Relay, nil)

	// 3) HTTP + WebSocket
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), mid.Manager().Use())

	mid.GET(r, cfg.Server.WsPath, gw.HandleWS, mid.RouteOpt{IsAuth: true}) // ws://host/ws/speech?token=...
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": registry.Len()})
	})
	if collector != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(collector.Handler()))
	}
	if presence != nil {
		mid.GET(r, "/speech/sessions", user.HandlerSessions(presence), mid.RouteOpt{IsAuth: true})
	}
	if cfg.Server.DevTokens {
		logger.Warnf("dev token endpoint enabled, do not use in production")
		mid.POST(r, "/dev/token", user.HandlerDevToken(config.JwtOptions(cfg)), mid.RouteOpt{IsAuth: false})
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("[HTTP] Listening on %s, speech ws path %s", cfg.Server.Addr, cfg.Server.WsPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("HTTP server failed: %v", err)
			os.Exit(1)
		}
	}()

	// 4) 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Infof("received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 已升级的 websocket 不受 Shutdown 管，先把会话全部关掉
	gw.Shutdown()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warnf("HTTP shutdown: %v", err)
	}
	logger.Infof("bye")
}
