// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/nacos"
)

const shutdownTimeout = 10 * time.Second

// AppInfo 包含了启动服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	Nacos            NacosConfig
	RegisterHandlers func(mux *http.ServeMux)
	// Workers 与 HTTP 服务一起运行，ctx 取消时应返回
	Workers []func(ctx context.Context) error
	// Cleanups 在 HTTP 服务关闭后按注册的逆序执行
	Cleanups []func(ctx context.Context) error
}

// StartService 封装了服务的启动和优雅关停逻辑，收到 SIGINT/SIGTERM 或 ctx 取消时返回。
func StartService(ctx context.Context, info AppInfo) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(mux)
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           logger.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	deregister, err := registerNacos(info)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	for _, worker := range info.Workers {
		g.Go(func() error { return worker(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("service", info.ServiceName).Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		deregister()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown failed")
		}
		for i := len(info.Cleanups) - 1; i >= 0; i-- {
			if err := info.Cleanups[i](shutdownCtx); err != nil {
				log.Error().Err(err).Msg("cleanup failed")
			}
		}
		return nil
	})

	err = g.Wait()
	log.Info().Str("service", info.ServiceName).Err(err).Msg("service stopped")
	return err
}

func registerNacos(info AppInfo) (func(), error) {
	if !info.Nacos.Enabled {
		return func() {}, nil
	}
	client, err := nacos.NewNacosClient(info.Nacos.Addrs, info.Nacos.Namespace, info.Nacos.Group)
	if err != nil {
		return nil, err
	}
	ip, err := outboundIP()
	if err != nil {
		return nil, err
	}
	if err := client.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		return nil, err
	}
	return func() {
		if err := client.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			log.Error().Err(err).Msg("nacos deregistration failed")
		}
	}, nil
}

// outboundIP 返回访问外网时使用的本机地址，UDP 拨号不会真正发包
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
