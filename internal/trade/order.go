package trade

import "github.com/shopspring/decimal"

// LeverageRequest 描述一次杠杆设置。PositionSide 为空时表示精简参数形态。
type LeverageRequest struct {
	Symbol       string
	Leverage     int64
	MarginMode   MarginMode
	PositionSide PositionSide
}

// Reduced 返回去掉仓位标记后的精简请求。
func (r LeverageRequest) Reduced() LeverageRequest {
	r.PositionSide = ""
	return r
}

// MarketOrder 为市价开仓委托。
type MarketOrder struct {
	Symbol        string
	Side          Side
	Amount        decimal.Decimal
	MarginMode    MarginMode
	ClientOrderID string
}

// OrderAck 为交易所受理委托后的回执。
type OrderAck struct {
	ID            string
	ClientOrderID string
	// AveragePrice 为成交均价，交易所未返回时为零值。
	AveragePrice decimal.Decimal
}

// ProtectionShape 标识保护单的委托形态。
type ProtectionShape string

const (
	ShapeCombinedTagged   ProtectionShape = "combined_tagged"
	ShapeCombinedUntagged ProtectionShape = "combined_untagged"
	ShapeSplitConditional ProtectionShape = "split_conditional"
)

// ProtectionOrder 是各保护单形态的统一接口，只能由本包内的类型实现。
type ProtectionOrder interface {
	Shape() ProtectionShape
	protectionOrder()
}

// Exit 为所有保护单形态共享的平仓参数。
type Exit struct {
	Symbol     string
	CloseSide  Side
	Amount     decimal.Decimal
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
	MarginMode MarginMode
}

// CombinedTagged 为带仓位标记的止盈止损二选一委托。
type CombinedTagged struct {
	Exit
	PositionSide PositionSide
}

// CombinedUntagged 为不带仓位标记的止盈止损二选一委托，适用于单向持仓模式。
type CombinedUntagged struct {
	Exit
}

// SplitConditional 为两笔独立的条件委托，分别负责止盈和止损。
type SplitConditional struct {
	Exit
}

func (CombinedTagged) Shape() ProtectionShape   { return ShapeCombinedTagged }
func (CombinedUntagged) Shape() ProtectionShape { return ShapeCombinedUntagged }
func (SplitConditional) Shape() ProtectionShape { return ShapeSplitConditional }

func (CombinedTagged) protectionOrder()   {}
func (CombinedUntagged) protectionOrder() {}
func (SplitConditional) protectionOrder() {}
