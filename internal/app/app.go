package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swap-signal-trader/internal/config"
	"swap-signal-trader/internal/exchange"
	"swap-signal-trader/internal/execution"
	"swap-signal-trader/internal/position"
	"swap-signal-trader/internal/trade"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run 连接交易所、组装执行流水线并提供 webhook 服务，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("交易系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Exchange.Name),
		zap.Strings("markets", a.cfg.Exchange.Markets),
		zap.Bool("sandbox", a.cfg.Exchange.UseSandbox),
		zap.String("sizing_mode", a.cfg.Sizing.Mode),
		zap.Int64("leverage", a.cfg.Sizing.Leverage),
	)

	client, err := exchange.NewClient(a.cfg.Exchange, a.logger.Named("exchange"))
	if err != nil {
		return fmt.Errorf("初始化交易所客户端失败: %w", err)
	}
	if err := client.Warmup(ctx); err != nil {
		return fmt.Errorf("交易所预热失败: %w", err)
	}

	coordinator, err := execution.NewCoordinator(client, executionOptions(a.cfg), a.logger.Named("execution"))
	if err != nil {
		return fmt.Errorf("初始化执行流水线失败: %w", err)
	}

	if !a.cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      newRouter(coordinator, a.cfg.Server, a.logger.Named("http")),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	if err := serve(ctx, srv, a.cfg.Server.ShutdownTimeout, a.logger); err != nil {
		return err
	}
	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}

func executionOptions(cfg *config.Config) execution.Options {
	margin := trade.MarginMode(cfg.Exchange.MarginMode)
	return execution.Options{
		Markets: cfg.Exchange.Markets,
		Policy:  cfg.SizingPolicy(),
		Entry: execution.EntryOptions{
			Leverage:   cfg.Sizing.Leverage,
			MarginMode: margin,
		},
		Protection: execution.ProtectionOptions{
			TakeProfitFraction: decimal.NewFromFloat(cfg.Protection.TakeProfitFraction),
			StopLossFraction:   decimal.NewFromFloat(cfg.Protection.StopLossFraction),
			MarginMode:         margin,
		},
		Cooldown:        cfg.Trade.Cooldown,
		PositionFailure: position.FailurePolicy(cfg.Trade.PositionCheckFailure),
	}
}
