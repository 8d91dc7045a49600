package signal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"swap-signal-trader/internal/trade"
)

// ErrUnknownDirection 表示信号方向不是 buy/sell。
var ErrUnknownDirection = errors.New("signal: direction must be buy or sell")

// Direction 为外部信号的交易方向。
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

var validDirections = map[string]Direction{
	"buy":  Buy,
	"sell": Sell,
}

// Side 返回开仓委托方向。
func (d Direction) Side() trade.Side {
	if d == Sell {
		return trade.SideSell
	}
	return trade.SideBuy
}

// Signal 是一次外部交易信号，创建后不可修改。
type Signal struct {
	Direction  Direction `json:"direction"`
	Symbol     string    `json:"symbol"`
	ReceivedAt time.Time `json:"received_at"`
}

// Parse 校验方向并构造信号。方向须精确等于 buy 或 sell。
func Parse(direction, symbol string, receivedAt time.Time) (Signal, error) {
	dir, ok := validDirections[direction]
	if !ok {
		return Signal{}, fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	return Signal{
		Direction:  dir,
		Symbol:     strings.TrimSpace(symbol),
		ReceivedAt: receivedAt,
	}, nil
}
