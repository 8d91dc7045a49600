package trade

import "github.com/shopspring/decimal"

// Market 描述交易对的下单单位与精度元数据。
type Market struct {
	Symbol string
	// Contract 为 true 时下单数量以合约张数计，否则以基础资产计。
	Contract     bool
	ContractSize decimal.Decimal
	AmountStep   decimal.Decimal
	PriceTick    decimal.Decimal
	MinAmount    decimal.Decimal
}

// ToNative 将基础资产数量换算为交易所原生下单单位。
func (m Market) ToNative(base decimal.Decimal) decimal.Decimal {
	if m.Contract && m.ContractSize.IsPositive() {
		return base.Div(m.ContractSize)
	}
	return base
}

// FloorAmount 将数量向下取整到最小下单增量。
func (m Market) FloorAmount(amount decimal.Decimal) decimal.Decimal {
	if !m.AmountStep.IsPositive() {
		return amount
	}
	return amount.Div(m.AmountStep).Floor().Mul(m.AmountStep)
}

// RoundPrice 将价格四舍五入到最小价格变动单位。
func (m Market) RoundPrice(price decimal.Decimal) decimal.Decimal {
	if !m.PriceTick.IsPositive() {
		return price
	}
	return price.Div(m.PriceTick).Round(0).Mul(m.PriceTick)
}

// MeetsMinimum 判断数量是否满足最小下单量。
func (m Market) MeetsMinimum(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	if m.MinAmount.IsPositive() && amount.LessThan(m.MinAmount) {
		return false
	}
	return true
}
