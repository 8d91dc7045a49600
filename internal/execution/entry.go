package execution

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"swap-signal-trader/internal/risk"
	"swap-signal-trader/internal/signal"
	"swap-signal-trader/internal/trade"
)

const (
	priceSourceFill  = "fill"
	priceSourceLast  = "last"
	priceSourceQuote = "quote"
)

type entryClient interface {
	SetLeverage(ctx context.Context, req trade.LeverageRequest) error
	CreateMarketOrder(ctx context.Context, order trade.MarketOrder) (trade.OrderAck, error)
	FetchLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// EntryOptions 控制杠杆与保证金模式。
type EntryOptions struct {
	Leverage   int64
	MarginMode trade.MarginMode
}

// EntryExecutor 负责设置杠杆、提交市价开仓并确定参考价。
type EntryExecutor struct {
	client     entryClient
	opts       EntryOptions
	logger     *zap.Logger
	newOrderID func() string
}

// NewEntryExecutor 创建开仓执行器。
func NewEntryExecutor(client entryClient, opts EntryOptions, logger *zap.Logger) *EntryExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MarginMode == "" {
		opts.MarginMode = trade.MarginIsolated
	}
	return &EntryExecutor{
		client:     client,
		opts:       opts,
		logger:     logger,
		newOrderID: newClientOrderID,
	}
}

// ConfigureLeverage 先以完整参数设置杠杆，被拒绝后以精简参数重试一次。
// 两次均失败时返回 ErrLeverageConfiguration，不允许静默忽略。
func (e *EntryExecutor) ConfigureLeverage(ctx context.Context, sig signal.Signal) error {
	full := trade.LeverageRequest{
		Symbol:       sig.Symbol,
		Leverage:     e.opts.Leverage,
		MarginMode:   e.opts.MarginMode,
		PositionSide: trade.PositionSideFor(sig.Direction.Side()),
	}

	fullErr := e.client.SetLeverage(ctx, full)
	if fullErr == nil {
		return nil
	}

	e.logger.Warn("杠杆设置被拒绝，使用精简参数重试",
		zap.String("symbol", sig.Symbol),
		zap.Int64("leverage", e.opts.Leverage),
		zap.Error(fullErr),
	)

	reducedErr := e.client.SetLeverage(ctx, full.Reduced())
	if reducedErr == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrLeverageConfiguration, multierr.Combine(fullErr, reducedErr))
}

// Enter 提交一笔市价开仓，并解析用于止盈止损计算的参考价：
// 优先成交均价，其次重新查询最新价，最后退回下单前报价。
func (e *EntryExecutor) Enter(ctx context.Context, sig signal.Signal, sized risk.SizedOrder) (EntryOrder, error) {
	order := trade.MarketOrder{
		Symbol:        sig.Symbol,
		Side:          sig.Direction.Side(),
		Amount:        sized.Quantity,
		MarginMode:    e.opts.MarginMode,
		ClientOrderID: e.newOrderID(),
	}

	ack, err := e.client.CreateMarketOrder(ctx, order)
	if err != nil {
		return EntryOrder{}, fmt.Errorf("execution: 市价开仓被拒绝: %w", err)
	}

	entry := EntryOrder{
		OrderID:       ack.ID,
		ClientOrderID: order.ClientOrderID,
		Side:          order.Side,
		Quantity:      order.Amount,
	}

	switch {
	case ack.AveragePrice.IsPositive():
		entry.ReferencePrice = ack.AveragePrice
		entry.PriceSource = priceSourceFill
	default:
		last, lastErr := e.client.FetchLastPrice(ctx, sig.Symbol)
		if lastErr == nil && last.IsPositive() {
			entry.ReferencePrice = last
			entry.PriceSource = priceSourceLast
		} else {
			e.logger.Warn("无法获取成交价与最新价，使用下单前报价",
				zap.String("symbol", sig.Symbol),
				zap.String("order_id", ack.ID),
				zap.Error(lastErr),
			)
			entry.ReferencePrice = sized.ReferencePrice
			entry.PriceSource = priceSourceQuote
		}
	}

	e.logger.Info("市价开仓已提交",
		zap.String("symbol", sig.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("quantity", order.Amount.String()),
		zap.String("order_id", ack.ID),
		zap.String("reference_price", entry.ReferencePrice.String()),
		zap.String("price_source", entry.PriceSource),
	)

	return entry, nil
}

// OKX 的 clOrdId 最长 32 位且只允许字母数字。
func newClientOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
