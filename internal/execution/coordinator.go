package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"swap-signal-trader/internal/gate"
	"swap-signal-trader/internal/metrics"
	"swap-signal-trader/internal/position"
	"swap-signal-trader/internal/risk"
	"swap-signal-trader/internal/signal"
)

// ErrUnsupportedSymbol 表示信号指定的交易对不在配置的市场列表中。
var ErrUnsupportedSymbol = errors.New("execution: unsupported symbol")

// Options 聚合执行流水线的配置。
type Options struct {
	// Markets 为允许交易的交易对，第一个为默认交易对。
	Markets         []string
	Policy          risk.Policy
	Entry           EntryOptions
	Protection      ProtectionOptions
	Strategies      []ProtectionStrategy
	Cooldown        time.Duration
	PositionFailure position.FailurePolicy
}

// Request 为入站信号的原始字段。
type Request struct {
	Direction  string
	Symbol     string
	ReceivedAt time.Time
}

// Coordinator 串联准入、持仓检查、仓位计算、杠杆、开仓与保护单挂载。
type Coordinator struct {
	gateway  Gateway
	markets  []string
	policy   risk.Policy
	gate     *gate.Gate
	guard    *position.Guard
	entry    *EntryExecutor
	attacher *Attacher
	logger   *zap.Logger
	now      func() time.Time
}

// NewCoordinator 校验配置并组装执行流水线。
func NewCoordinator(gw Gateway, opts Options, logger *zap.Logger) (*Coordinator, error) {
	if gw == nil {
		return nil, errors.New("execution: gateway 不能为空")
	}
	if len(opts.Markets) == 0 {
		return nil, errors.New("execution: 至少需要一个交易对")
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("execution: 仓位策略无效: %w", err)
	}
	if opts.Entry.Leverage <= 0 {
		return nil, errors.New("execution: 杠杆必须大于0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Protection.MarginMode == "" {
		opts.Protection.MarginMode = opts.Entry.MarginMode
	}

	return &Coordinator{
		gateway:  gw,
		markets:  opts.Markets,
		policy:   opts.Policy,
		gate:     gate.New(opts.Cooldown, logger),
		guard:    position.NewGuard(gw, opts.PositionFailure, logger),
		entry:    NewEntryExecutor(gw, opts.Entry, logger),
		attacher: NewAttacher(gw, opts.Strategies, opts.Protection, logger),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Submit 解析入站请求并执行。方向非法或交易对不受支持时返回 rejected_signal 失败结果，不产生任何副作用。
func (c *Coordinator) Submit(ctx context.Context, req Request) (Result, error) {
	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = c.now()
	}

	symbol, err := c.resolveSymbol(req.Symbol)
	if err != nil {
		return c.fail(Result{Signal: signal.Signal{Symbol: req.Symbol, ReceivedAt: receivedAt}}, KindRejectedSignal, err)
	}

	sig, err := signal.Parse(req.Direction, symbol, receivedAt)
	if err != nil {
		return c.fail(Result{Signal: signal.Signal{Symbol: symbol, ReceivedAt: receivedAt}}, KindRejectedSignal, err)
	}

	return c.Execute(ctx, sig)
}

// Execute 对已解析的信号运行完整流水线。仅当 Outcome 为 failed 时返回非空错误；
// 开仓成功后保护单失败不算失败，结果中 Protection.Status 为 failed。
func (c *Coordinator) Execute(ctx context.Context, sig signal.Signal) (Result, error) {
	result := Result{Signal: sig}

	release, err := c.gate.Admit(sig)
	switch {
	case errors.Is(err, gate.ErrBusy):
		return c.skip(result, SkipBusy), nil
	case errors.Is(err, gate.ErrDuplicate):
		return c.skip(result, SkipDuplicate), nil
	case err != nil:
		return c.fail(result, KindRejectedSignal, err)
	}
	defer release()

	c.logger.Info("信号已准入",
		zap.String("symbol", sig.Symbol),
		zap.String("direction", string(sig.Direction)),
		zap.Time("received_at", sig.ReceivedAt),
	)

	open, err := c.guard.HasOpenPosition(ctx, sig.Symbol)
	if err != nil {
		return c.fail(result, KindPositionUnknown, err)
	}
	if open {
		return c.skip(result, SkipPositionAlreadyOpen), nil
	}

	balance, err := c.gateway.FetchFreeBalance(ctx)
	if err != nil {
		return c.fail(result, KindMarketData, fmt.Errorf("execution: 获取可用余额失败: %w", err))
	}
	price, err := c.gateway.FetchLastPrice(ctx, sig.Symbol)
	if err != nil {
		return c.fail(result, KindMarketData, fmt.Errorf("execution: 获取最新价失败: %w", err))
	}
	market, err := c.gateway.Market(ctx, sig.Symbol)
	if err != nil {
		return c.fail(result, KindMarketData, fmt.Errorf("execution: 获取市场精度失败: %w", err))
	}

	sized, err := risk.Size(balance, price, c.policy, market)
	if err != nil {
		kind := KindInsufficientSize
		switch {
		case errors.Is(err, risk.ErrInsufficientBalance):
			kind = KindInsufficientBalance
		case errors.Is(err, risk.ErrInvalidPrice):
			kind = KindMarketData
		}
		return c.fail(result, kind, err)
	}
	result.Order = &sized

	c.logger.Info("仓位计算完成",
		zap.String("symbol", sig.Symbol),
		zap.String("balance", balance.String()),
		zap.String("price", price.String()),
		zap.String("quantity", sized.Quantity.String()),
		zap.String("base_quantity", sized.BaseQuantity.StringFixed(8)),
	)

	if err := c.entry.ConfigureLeverage(ctx, sig); err != nil {
		return c.fail(result, KindLeverageConfiguration, err)
	}

	entry, err := c.entry.Enter(ctx, sig, sized)
	if err != nil {
		return c.fail(result, KindEntryRejected, err)
	}
	result.Entry = &entry
	metrics.OrdersTotal.WithLabelValues(sig.Symbol, string(entry.Side), "entry").Inc()
	if entry.PriceSource == priceSourceQuote {
		result.Warnings = append(result.Warnings, "成交价与最新价均不可用，止盈止损基于下单前报价")
	}

	// 开仓已发生：此后的任何错误都只能体现在结果中，不能当作未成交处理。
	protection, err := c.attacher.Attach(ctx, sig, sized, entry.ReferencePrice, market)
	result.Protection = &protection
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("仓位未受保护: %v", err))
		c.logger.Error("所有保护单形态均失败，仓位未受保护",
			zap.String("symbol", sig.Symbol),
			zap.String("entry_order_id", entry.OrderID),
			zap.Error(err),
		)
	} else {
		metrics.OrdersTotal.WithLabelValues(sig.Symbol, string(protection.Spec.ClosingSide), "protection").Add(float64(len(protection.OrderIDs)))
	}

	result.Outcome = OutcomeExecuted
	result.FinishedAt = c.now()
	reason := string(protection.Status)
	metrics.SignalsTotal.WithLabelValues(sig.Symbol, string(OutcomeExecuted), reason).Inc()
	return result, nil
}

func (c *Coordinator) resolveSymbol(symbol string) (string, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return c.markets[0], nil
	}
	for _, m := range c.markets {
		if strings.EqualFold(m, symbol) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedSymbol, symbol)
}

func (c *Coordinator) skip(result Result, reason SkipReason) Result {
	result.Outcome = OutcomeSkipped
	result.SkipReason = reason
	result.FinishedAt = c.now()
	metrics.SignalsTotal.WithLabelValues(result.Signal.Symbol, string(OutcomeSkipped), string(reason)).Inc()

	c.logger.Info("信号已跳过",
		zap.String("symbol", result.Signal.Symbol),
		zap.String("direction", string(result.Signal.Direction)),
		zap.String("reason", string(reason)),
	)
	return result
}

func (c *Coordinator) fail(result Result, kind ErrorKind, err error) (Result, error) {
	failure := newFailure(kind, err)
	result.Outcome = OutcomeFailed
	result.Failure = failure
	result.FinishedAt = c.now()
	metrics.SignalsTotal.WithLabelValues(result.Signal.Symbol, string(OutcomeFailed), string(kind)).Inc()

	c.logger.Error("信号执行失败，未产生成交",
		zap.String("symbol", result.Signal.Symbol),
		zap.String("direction", string(result.Signal.Direction)),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return result, failure
}
