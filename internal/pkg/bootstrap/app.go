// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/nacos"
	"orderflow/internal/pkg/tracing"
)

// AppCtx 在注册回调中暴露给各服务的共享对象。
type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client
}

// AppInfo 描述一个服务进程的启动参数。
type AppInfo struct {
	ServiceName string
	Port        int

	// RegisterHandlers 允许每个服务注册自己的 HTTP 路由
	RegisterHandlers func(appCtx AppCtx)

	// Runners 是随服务一起运行的后台任务（消费者、轮询器等），
	// 任意一个返回错误会触发整个进程退出。
	Runners []func(ctx context.Context) error
}

// Init 完成日志等进程级初始化，main 最先调用。
func Init(serviceName string) {
	logger.Init(serviceName)
}

// StartService 封装所有服务进程的通用启动与优雅关停逻辑：
// 配置加载、链路初始化、Nacos 注册、HTTP 服务、后台任务、信号处理。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()
	log := logger.Logger()

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.App.JaegerEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	namingClient, err := nacos.NewNacosClient(cfg.App.Nacos.ServerAddrs, cfg.App.Nacos.Namespace, cfg.App.Nacos.Group)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create nacos client")
	}

	ip := localIP()
	if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to register service with nacos")
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}

	runCtx, cancelRunners := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		log.Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	for _, runner := range info.Runners {
		runner := runner
		g.Go(func() error { return runner(gctx) })
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msgf("Shutting down service %s...", info.ServiceName)
	case <-gctx.Done():
		log.Error().Msg("A background runner failed, shutting down.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关停顺序与启动相反：先摘流量，再停任务，最后冲刷链路数据
	if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		log.Error().Err(err).Msg("Error deregistering from Nacos")
	}

	cancelRunners()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down http server")
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Background runner reported error on shutdown")
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down tracer provider")
	}

	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}

// localIP 返回本机对外 IP，注册到 Nacos 用。
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
