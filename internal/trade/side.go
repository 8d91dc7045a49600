package trade

// Side 表示委托方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite 返回反向方向，用于平仓委托。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// PositionSide 为双向持仓模式下的仓位标记。
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// PositionSideFor 返回开仓方向对应的仓位标记。
func PositionSideFor(entry Side) PositionSide {
	if entry == SideSell {
		return PositionSideShort
	}
	return PositionSideLong
}

// MarginMode 为保证金模式。
type MarginMode string

const (
	MarginIsolated MarginMode = "isolated"
	MarginCross    MarginMode = "cross"
)

// Valid 判断保证金模式是否受支持。
func (m MarginMode) Valid() bool {
	return m == MarginIsolated || m == MarginCross
}
