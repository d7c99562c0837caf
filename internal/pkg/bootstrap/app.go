package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// AppInfo 包含了启动服务所需的信息。
type AppInfo struct {
	ServiceName      string
	Addr             string
	RegisterHandlers func(mux *http.ServeMux) // 每个服务注册自己的 HTTP 路由
	OnShutdown       []func(ctx context.Context) error
}

// StartService 封装了通用的启动和优雅关停逻辑。
// 关停钩子按注册顺序的逆序执行（后进先出）。
func StartService(info AppInfo) {
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(mux)
	}

	server := &http.Server{Addr: info.Addr, Handler: mux}
	go func() {
		log.Info().Str("service", info.ServiceName).Str("addr", info.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("addr", server.Addr).Msg("http server failed")
		}
	}()

	// 阻塞主 goroutine，直到接收到退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Str("service", info.ServiceName).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 先停收新请求，再逆序清理依赖资源
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}

	for i := len(info.OnShutdown) - 1; i >= 0; i-- {
		if err := info.OnShutdown[i](ctx); err != nil {
			log.Error().Err(err).Int("hook", i).Msg("shutdown hook failed")
		}
	}

	log.Info().Str("service", info.ServiceName).Msg("gracefully shut down")
}
