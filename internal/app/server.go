package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swap-signal-trader/internal/config"
	"swap-signal-trader/internal/execution"
	"swap-signal-trader/internal/metrics"
)

const healthMessage = "swap-signal-trader is running"

type executor interface {
	Submit(ctx context.Context, req execution.Request) (execution.Result, error)
}

type webhookRequest struct {
	Signal     string `json:"signal"`
	Symbol     string `json:"symbol"`
	Passphrase string `json:"passphrase"`
}

// newRouter 注册健康检查、webhook 与指标接口。
func newRouter(exec executor, cfg config.ServerConfig, logger *zap.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, healthMessage)
	})
	engine.POST(cfg.WebhookPath, webhookHandler(exec, cfg.Passphrase, logger))
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	return engine
}

func webhookHandler(exec executor, passphrase string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req webhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid json"})
			return
		}

		if passphrase != "" && subtle.ConstantTimeCompare([]byte(req.Passphrase), []byte(passphrase)) != 1 {
			logger.Warn("webhook 口令校验失败", zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "unauthorized"})
			return
		}

		// 客户端断开不能中断已开始的下单流程。
		ctx := context.WithoutCancel(c.Request.Context())
		result, err := exec.Submit(ctx, execution.Request{
			Direction:  req.Signal,
			Symbol:     req.Symbol,
			ReceivedAt: time.Now().UTC(),
		})

		switch {
		case err != nil:
			var failure *execution.Failure
			status := http.StatusInternalServerError
			if errors.As(err, &failure) && failure.Kind == execution.KindRejectedSignal {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"success": false, "error": err.Error(), "result": result})
		case result.Outcome == execution.OutcomeSkipped:
			c.JSON(http.StatusOK, gin.H{"success": true, "skipped": true, "result": result})
		default:
			if result.Unprotected() {
				logger.Error("仓位已开但未挂上止盈止损，需要人工处理",
					zap.String("symbol", result.Signal.Symbol),
					zap.Strings("warnings", result.Warnings),
				)
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
		}
	}
}

// requestLogger 记录请求摘要。请求体含口令，不写入日志。
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP 请求",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// serve 启动 HTTP 服务，并在 ctx 取消后优雅关闭。
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("webhook 服务已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook 服务异常: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("关闭 webhook 服务失败: %w", err)
		}
		logger.Info("webhook 服务已关闭")
		return nil
	})

	return group.Wait()
}
