package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Mode 为仓位计算方式。
type Mode string

const (
	// ModeRiskBased 按单笔风险金额与止损距离计算数量。
	ModeRiskBased Mode = "risk_based"
	// ModeFullBalance 按可用余额占比乘以杠杆计算名义价值。
	ModeFullBalance Mode = "full_balance"
)

var (
	// ErrInsufficientBalance 表示账户余额不可用。
	ErrInsufficientBalance = errors.New("risk: insufficient balance")
	// ErrInsufficientSize 表示计算出的数量为零或低于最小下单量。
	ErrInsufficientSize = errors.New("risk: insufficient order size")
	// ErrInvalidPrice 表示参考价格无效。
	ErrInvalidPrice = errors.New("risk: invalid price")
)

// Policy 描述仓位计算策略，每个部署只启用一种模式。
type Policy struct {
	Mode                Mode
	RiskFraction        decimal.Decimal
	StopLossFraction    decimal.Decimal
	UtilizationFraction decimal.Decimal
	Leverage            decimal.Decimal
}

// RiskBased 构造按风险计算的策略。
func RiskBased(riskFraction, stopLossFraction float64) Policy {
	return Policy{
		Mode:             ModeRiskBased,
		RiskFraction:     decimal.NewFromFloat(riskFraction),
		StopLossFraction: decimal.NewFromFloat(stopLossFraction),
	}
}

// FullBalance 构造按余额占比计算的策略。
func FullBalance(utilizationFraction float64, leverage int64) Policy {
	return Policy{
		Mode:                ModeFullBalance,
		UtilizationFraction: decimal.NewFromFloat(utilizationFraction),
		Leverage:            decimal.NewFromInt(leverage),
	}
}

// Validate 在启动时校验策略参数，止损比例为 0 属于配置错误。
func (p Policy) Validate() error {
	var err error
	one := decimal.NewFromInt(1)

	switch p.Mode {
	case ModeRiskBased:
		if !p.RiskFraction.IsPositive() || p.RiskFraction.GreaterThan(one) {
			err = multierr.Append(err, fmt.Errorf("sizing.risk_fraction 必须位于(0,1]，当前为 %s", p.RiskFraction))
		}
		if !p.StopLossFraction.IsPositive() || p.StopLossFraction.GreaterThanOrEqual(one) {
			err = multierr.Append(err, fmt.Errorf("stop_loss_fraction 必须位于(0,1)，当前为 %s", p.StopLossFraction))
		}
	case ModeFullBalance:
		if !p.UtilizationFraction.IsPositive() || p.UtilizationFraction.GreaterThan(one) {
			err = multierr.Append(err, fmt.Errorf("sizing.utilization_fraction 必须位于(0,1]，当前为 %s", p.UtilizationFraction))
		}
		if p.Leverage.LessThan(one) {
			err = multierr.Append(err, fmt.Errorf("sizing.leverage 必须不小于1，当前为 %s", p.Leverage))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("sizing.mode 取值非法: %q", p.Mode))
	}

	return err
}

// SizedOrder 为计算后的下单数量。Quantity 以交易所原生单位计且恒大于 0。
type SizedOrder struct {
	Quantity       decimal.Decimal `json:"quantity"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
	// BaseQuantity 为换算和取整前的基础资产数量。
	BaseQuantity decimal.Decimal `json:"base_quantity"`
}
