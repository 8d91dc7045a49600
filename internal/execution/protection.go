package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"swap-signal-trader/internal/metrics"
	"swap-signal-trader/internal/risk"
	"swap-signal-trader/internal/signal"
	"swap-signal-trader/internal/trade"
)

// ErrInvalidProtection 表示取整后的触发价不满足方向约束。
var ErrInvalidProtection = errors.New("execution: invalid protection triggers")

type protectionClient interface {
	CreateProtection(ctx context.Context, order trade.ProtectionOrder) ([]string, error)
}

// ProtectionStrategy 为一种保护单形态及其构造函数。
type ProtectionStrategy struct {
	Shape trade.ProtectionShape
	Build func(exit trade.Exit, entry trade.Side) trade.ProtectionOrder
}

// DefaultStrategies 按能力从高到低排列：带仓位标记的组合单、无标记组合单、拆分条件单。
var DefaultStrategies = []ProtectionStrategy{
	{
		Shape: trade.ShapeCombinedTagged,
		Build: func(exit trade.Exit, entry trade.Side) trade.ProtectionOrder {
			return trade.CombinedTagged{Exit: exit, PositionSide: trade.PositionSideFor(entry)}
		},
	},
	{
		Shape: trade.ShapeCombinedUntagged,
		Build: func(exit trade.Exit, _ trade.Side) trade.ProtectionOrder {
			return trade.CombinedUntagged{Exit: exit}
		},
	},
	{
		Shape: trade.ShapeSplitConditional,
		Build: func(exit trade.Exit, _ trade.Side) trade.ProtectionOrder {
			return trade.SplitConditional{Exit: exit}
		},
	},
}

// ProtectionOptions 为止盈止损比例。
type ProtectionOptions struct {
	TakeProfitFraction decimal.Decimal
	StopLossFraction   decimal.Decimal
	MarginMode         trade.MarginMode
}

// ComputeProtection 根据开仓方向与参考价计算止盈止损触发价，并按价格精度取整。
func ComputeProtection(entry trade.Side, reference decimal.Decimal, opts ProtectionOptions, market trade.Market) (ProtectionSpec, error) {
	one := decimal.NewFromInt(1)

	var tp, sl decimal.Decimal
	if entry == trade.SideBuy {
		sl = reference.Mul(one.Sub(opts.StopLossFraction))
		tp = reference.Mul(one.Add(opts.TakeProfitFraction))
	} else {
		sl = reference.Mul(one.Add(opts.StopLossFraction))
		tp = reference.Mul(one.Sub(opts.TakeProfitFraction))
	}

	spec := ProtectionSpec{
		TakeProfitTrigger: market.RoundPrice(tp),
		StopLossTrigger:   market.RoundPrice(sl),
		ClosingSide:       entry.Opposite(),
	}

	valid := spec.StopLossTrigger.LessThan(reference) && reference.LessThan(spec.TakeProfitTrigger)
	if entry == trade.SideSell {
		valid = spec.TakeProfitTrigger.LessThan(reference) && reference.LessThan(spec.StopLossTrigger)
	}
	if !valid || !spec.TakeProfitTrigger.IsPositive() || !spec.StopLossTrigger.IsPositive() {
		return spec, fmt.Errorf("%w: side=%s ref=%s tp=%s sl=%s",
			ErrInvalidProtection, entry, reference, spec.TakeProfitTrigger, spec.StopLossTrigger)
	}

	return spec, nil
}

// Attacher 按策略优先级依次尝试挂载保护单，直到某一形态被交易所受理。
type Attacher struct {
	client     protectionClient
	strategies []ProtectionStrategy
	opts       ProtectionOptions
	logger     *zap.Logger
}

// NewAttacher 创建保护单挂载器。strategies 为空时使用 DefaultStrategies。
func NewAttacher(client protectionClient, strategies []ProtectionStrategy, opts ProtectionOptions, logger *zap.Logger) *Attacher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	return &Attacher{
		client:     client,
		strategies: strategies,
		opts:       opts,
		logger:     logger,
	}
}

// Attach 计算触发价并逐一尝试各形态。全部失败时返回 Status=failed 的结果与聚合错误。
func (a *Attacher) Attach(ctx context.Context, sig signal.Signal, sized risk.SizedOrder, reference decimal.Decimal, market trade.Market) (ProtectionResult, error) {
	entrySide := sig.Direction.Side()
	result := ProtectionResult{
		Status:   ProtectionFailed,
		Attempts: make([]Attempt, 0, len(a.strategies)),
	}

	spec, err := ComputeProtection(entrySide, reference, a.opts, market)
	result.Spec = spec
	if err != nil {
		return result, err
	}

	exit := trade.Exit{
		Symbol:     sig.Symbol,
		CloseSide:  spec.ClosingSide,
		Amount:     sized.Quantity,
		TakeProfit: spec.TakeProfitTrigger,
		StopLoss:   spec.StopLossTrigger,
		MarginMode: a.opts.MarginMode,
	}

	var combined error
	for _, strategy := range a.strategies {
		order := strategy.Build(exit, entrySide)
		ids, submitErr := a.client.CreateProtection(ctx, order)
		attempt := Attempt{Strategy: strategy.Shape, OrderIDs: ids}

		if submitErr == nil {
			result.Attempts = append(result.Attempts, attempt)
			result.Status = ProtectionAttached
			result.Strategy = strategy.Shape
			result.OrderIDs = ids
			metrics.ProtectionAttemptsTotal.WithLabelValues(string(strategy.Shape), "accepted").Inc()

			a.logger.Info("保护单已挂载",
				zap.String("symbol", sig.Symbol),
				zap.String("strategy", string(strategy.Shape)),
				zap.Strings("order_ids", ids),
				zap.String("take_profit", spec.TakeProfitTrigger.String()),
				zap.String("stop_loss", spec.StopLossTrigger.String()),
			)
			return result, nil
		}

		attempt.Error = submitErr.Error()
		result.Attempts = append(result.Attempts, attempt)
		combined = multierr.Append(combined, fmt.Errorf("%s: %w", strategy.Shape, submitErr))
		metrics.ProtectionAttemptsTotal.WithLabelValues(string(strategy.Shape), "rejected").Inc()

		a.logger.Warn("保护单形态被拒绝，尝试下一种",
			zap.String("symbol", sig.Symbol),
			zap.String("strategy", string(strategy.Shape)),
			zap.Strings("accepted_legs", ids),
			zap.Error(submitErr),
		)
	}

	return result, fmt.Errorf("execution: 所有保护单形态均失败: %w", combined)
}
