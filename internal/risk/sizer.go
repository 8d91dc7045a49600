package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"swap-signal-trader/internal/trade"
)

// Size 根据余额、价格与策略计算下单数量，结果换算为交易所原生单位并向下取整。
// 纯函数，无副作用。
func Size(balance, price decimal.Decimal, policy Policy, market trade.Market) (SizedOrder, error) {
	if balance.IsNegative() {
		return SizedOrder{}, fmt.Errorf("%w: balance=%s", ErrInsufficientBalance, balance)
	}
	if !price.IsPositive() {
		return SizedOrder{}, fmt.Errorf("%w: price=%s", ErrInvalidPrice, price)
	}

	var base decimal.Decimal
	switch policy.Mode {
	case ModeRiskBased:
		perUnitLoss := price.Mul(policy.StopLossFraction)
		if !perUnitLoss.IsPositive() {
			return SizedOrder{}, fmt.Errorf("risk: 单位止损额无效 stop_loss_fraction=%s", policy.StopLossFraction)
		}
		riskAmount := balance.Mul(policy.RiskFraction)
		base = riskAmount.Div(perUnitLoss)
	case ModeFullBalance:
		notional := balance.Mul(policy.UtilizationFraction).Mul(policy.Leverage)
		base = notional.Div(price)
	default:
		return SizedOrder{}, fmt.Errorf("risk: 不支持的仓位计算方式 %q", policy.Mode)
	}

	quantity := market.FloorAmount(market.ToNative(base))
	if !market.MeetsMinimum(quantity) {
		return SizedOrder{}, fmt.Errorf("%w: quantity=%s min=%s base=%s",
			ErrInsufficientSize, quantity, market.MinAmount, base.StringFixed(8))
	}

	return SizedOrder{
		Quantity:       quantity,
		ReferencePrice: price,
		BaseQuantity:   base,
	}, nil
}
