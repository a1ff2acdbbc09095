package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skyclimb/server"
)

// SkyClimb 入口：TCP 主服务 + 可选的 HTTP（WebSocket 网关与监控）
func main() {
	var (
		addr     string
		httpAddr string
		logFile  string
		logLevel string
		logJSON  bool
		seed     int64
	)
	flag.StringVar(&addr, "addr", ":5555", "tcp listen address")
	flag.StringVar(&httpAddr, "http", ":8080", "websocket/admin listen address, empty to disable")
	flag.StringVar(&logFile, "log", "app.log", "log file path, empty for stderr")
	flag.StringVar(&logLevel, "log-level", "debug", "log level: debug, info, warn, error")
	flag.BoolVar(&logJSON, "log-json", false, "json log encoding instead of console")
	flag.Int64Var(&seed, "seed", 0, "platform/spawn random seed, 0 for time based")
	flag.Parse()

	// 使用第三方 zap 日志库写入 app.log（带滚动）
	if err := server.InitLogger(server.LogConfig{Path: logFile, Level: logLevel, JSON: logJSON}); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	cfg := server.DefaultConfig()
	cfg.Seed = seed
	srv := server.NewServer(cfg)

	// 优雅退出（Ctrl+C）
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go srv.RunBroadcastLoop(ctx)

	if httpAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", srv.HandleWS)
		// 管理与监控接口
		mux.HandleFunc("/admin/rooms", srv.HandleRooms)
		mux.HandleFunc("/metrics", srv.HandleMetrics)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})
		hs := &http.Server{Addr: httpAddr, Handler: mux}
		go func() {
			server.Log.Infof("http listening on %s", httpAddr)
			if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				server.Log.Errorf("http listen: %v", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = hs.Shutdown(sctx)
		}()
	}

	if err := srv.ListenAndServe(ctx, addr); err != nil {
		server.Log.Errorf("listen: %v", err)
		return
	}
	server.Log.Info("Shutting down...")
}
