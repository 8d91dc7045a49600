package exchange

import (
	"fmt"

	"swap-signal-trader/internal/trade"
)

const (
	// quoteCurrency 为 USDT 本位永续合约的保证金币种。
	quoteCurrency = "USDT"

	orderTypeMarket = "market"
)

// orderRequest 为提交给 ccxt 的一笔委托。
type orderRequest struct {
	Type   string
	Side   string
	Amount float64
	Params map[string]interface{}
}

// entryRequest 构造市价开仓委托。
func entryRequest(order trade.MarketOrder) orderRequest {
	params := map[string]interface{}{
		"tdMode": string(order.MarginMode),
	}
	if order.ClientOrderID != "" {
		params["clientOrderId"] = order.ClientOrderID
	}
	return orderRequest{
		Type:   orderTypeMarket,
		Side:   string(order.Side),
		Amount: order.Amount.InexactFloat64(),
		Params: params,
	}
}

// protectionRequests 将保护单形态映射为一笔或多笔只减仓的触发委托。
// 同时携带 takeProfitPrice 与 stopLossPrice 时，ccxt 会生成 OKX 的 oco 策略委托。
func protectionRequests(order trade.ProtectionOrder) ([]orderRequest, error) {
	switch o := order.(type) {
	case trade.CombinedTagged:
		req := combinedRequest(o.Exit)
		req.Params["posSide"] = string(o.PositionSide)
		return []orderRequest{req}, nil
	case trade.CombinedUntagged:
		return []orderRequest{combinedRequest(o.Exit)}, nil
	case trade.SplitConditional:
		tp := exitRequest(o.Exit)
		tp.Params["takeProfitPrice"] = o.TakeProfit.InexactFloat64()
		sl := exitRequest(o.Exit)
		sl.Params["stopLossPrice"] = o.StopLoss.InexactFloat64()
		return []orderRequest{tp, sl}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedProtection, order)
	}
}

func combinedRequest(exit trade.Exit) orderRequest {
	req := exitRequest(exit)
	req.Params["takeProfitPrice"] = exit.TakeProfit.InexactFloat64()
	req.Params["stopLossPrice"] = exit.StopLoss.InexactFloat64()
	return req
}

func exitRequest(exit trade.Exit) orderRequest {
	return orderRequest{
		Type:   orderTypeMarket,
		Side:   string(exit.CloseSide),
		Amount: exit.Amount.InexactFloat64(),
		Params: map[string]interface{}{
			"reduceOnly": true,
			"tdMode":     string(exit.MarginMode),
		},
	}
}

// leverageParams 构造杠杆设置参数，精简形态不带 posSide。
func leverageParams(req trade.LeverageRequest) map[string]interface{} {
	params := map[string]interface{}{
		"marginMode": string(req.MarginMode),
	}
	if req.PositionSide != "" {
		params["posSide"] = string(req.PositionSide)
	}
	return params
}
