package execution

import (
	"context"

	"github.com/shopspring/decimal"

	"swap-signal-trader/internal/trade"
)

// Gateway 抽象执行流水线所需的交易所能力，便于切换真实或模拟交易所。
type Gateway interface {
	FetchFreeBalance(ctx context.Context) (decimal.Decimal, error)
	FetchLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Market(ctx context.Context, symbol string) (trade.Market, error)
	SetLeverage(ctx context.Context, req trade.LeverageRequest) error
	// FetchPositionSize 返回交易对上所有持仓腿的张数绝对值之和。
	FetchPositionSize(ctx context.Context, symbol string) (decimal.Decimal, error)
	CreateMarketOrder(ctx context.Context, order trade.MarketOrder) (trade.OrderAck, error)
	// CreateProtection 提交一种形态的保护单。部分成功时同时返回已受理的订单号与错误。
	CreateProtection(ctx context.Context, order trade.ProtectionOrder) ([]string, error)
}
