package position

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrPositionUnknown 表示持仓查询失败，无法确认是否已有仓位。
var ErrPositionUnknown = errors.New("position: open position state unknown")

// FailurePolicy 决定持仓查询失败时的处理方式。
type FailurePolicy string

const (
	// FailureBlock 查询失败时拒绝开仓。
	FailureBlock FailurePolicy = "block"
	// FailureAllow 查询失败时按无仓位处理（降级运行）。
	FailureAllow FailurePolicy = "allow"
)

// Valid 判断策略取值是否合法。
func (p FailurePolicy) Valid() bool {
	return p == FailureBlock || p == FailureAllow
}

type positionClient interface {
	FetchPositionSize(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Guard 在开仓前确认交易对上没有已存在的仓位。
type Guard struct {
	client positionClient
	policy FailurePolicy
	logger *zap.Logger
}

// NewGuard 创建持仓守卫。未知策略按 FailureBlock 处理。
func NewGuard(client positionClient, policy FailurePolicy, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !policy.Valid() {
		policy = FailureBlock
	}
	return &Guard{
		client: client,
		policy: policy,
		logger: logger,
	}
}

// HasOpenPosition 返回交易对上是否存在非零仓位。
func (g *Guard) HasOpenPosition(ctx context.Context, symbol string) (bool, error) {
	size, err := g.client.FetchPositionSize(ctx, symbol)
	if err != nil {
		if g.policy == FailureAllow {
			g.logger.Warn("持仓查询失败，按降级策略视为无仓位",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrPositionUnknown, err)
	}

	if !size.IsZero() {
		g.logger.Info("交易对已有持仓，跳过开仓",
			zap.String("symbol", symbol),
			zap.String("size", size.String()),
		)
		return true, nil
	}
	return false, nil
}
