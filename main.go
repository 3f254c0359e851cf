package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	beego "github.com/beego/beego/v2/server/web"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lucky10-server/common"
	"lucky10-server/common/logger"
	"lucky10-server/internal/config"
	infmysql "lucky10-server/internal/infra/mysql"
	infrds "lucky10-server/internal/infra/redis"
	"lucky10-server/internal/worker"
	_ "lucky10-server/routers"
)

func main() {
	logger.InitLogger()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 加载配置（Nacos 优先，本地文件兜底）
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatalf("load config failed", zap.Error(err))
	}
	config.Set(cfg)
	config.SetCurrent(cfg)
	if cfg.Server.LogLevel != "" {
		logger.SetLevel(cfg.Server.LogLevel)
	}

	// 配置热更新：仅刷新运行时状态与日志级别，连接类配置不热切
	if err := config.StartWatch(ctx, func(oldCfg, newCfg *config.Config) {
		config.Set(newCfg)
		if newCfg.Server.LogLevel != "" && (oldCfg == nil || oldCfg.Server.LogLevel != newCfg.Server.LogLevel) {
			logger.SetLevel(newCfg.Server.LogLevel)
		}
	}); err != nil {
		logger.Warn("config watch not started", zap.Error(err))
	}

	// 主库 / 从库
	db := common.InitDB(cfg.Database.DSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	infmysql.UseDB(db)
	if cfg.Database.SlaveDSN != "" {
		infmysql.UseSlaveDB(common.InitSlaveDB(cfg.Database.SlaveDSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns))
	}

	// Redis
	if cfg.Redis.Addr != "" {
		infrds.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}

	// 后台任务：回合调度、Outbox 分发、Inbox 消费
	var wg sync.WaitGroup
	worker.StartRoundScheduler(ctx, &wg)
	worker.StartOutboxDispatcher(ctx, &wg)
	worker.StartInboxConsumer(ctx, &wg)

	// Prometheus 指标独立端口暴露
	if cfg.Observability.EnableProm {
		addr := cfg.Observability.PromAddr
		if addr == "" {
			addr = ":9091"
		}
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Warn("metrics server exited", zap.Error(err))
			}
		}()
		logger.Info("metrics server started", zap.String("addr", addr))
	}

	// 信号处理：取消后台任务后等待收尾
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
		wg.Wait()
		logger.Sync()
		os.Exit(0)
	}()

	beego.BConfig.CopyRequestBody = true
	beego.Run(fmt.Sprintf(":%d", cfg.Server.Port))
}
