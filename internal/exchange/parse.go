package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"swap-signal-trader/internal/trade"
)

// parseMarket 从 ccxt 统一市场结构中提取下单精度。OKX 使用 TICK_SIZE 精度模式，
// precision.amount 与 precision.price 即为最小增量。
func parseMarket(symbol string, raw interface{}) (trade.Market, error) {
	m, ok := raw.(map[string]interface{})
	if !ok || m == nil {
		return trade.Market{}, fmt.Errorf("%w: %s", ErrUnknownMarket, symbol)
	}

	market := trade.Market{Symbol: symbol}
	if s, ok := m["symbol"].(string); ok && s != "" {
		market.Symbol = s
	}
	if contract, ok := m["contract"].(bool); ok {
		market.Contract = contract
	}
	market.ContractSize = toDecimal(m["contractSize"])

	if precision, ok := m["precision"].(map[string]interface{}); ok {
		market.AmountStep = toDecimal(precision["amount"])
		market.PriceTick = toDecimal(precision["price"])
	}
	if limits, ok := m["limits"].(map[string]interface{}); ok {
		if amount, ok := limits["amount"].(map[string]interface{}); ok {
			market.MinAmount = toDecimal(amount["min"])
		}
	}

	if market.Contract && !market.ContractSize.IsPositive() {
		return trade.Market{}, fmt.Errorf("exchange: %s 缺少合约面值", symbol)
	}

	return market, nil
}

func toDecimal(value interface{}) decimal.Decimal {
	if s, ok := value.(string); ok {
		if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
			return d
		}
		return decimal.Zero
	}
	return decimal.NewFromFloat(parseNumeric(value))
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func parseNumeric(value interface{}) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return v
	case *float64:
		if v != nil {
			return *v
		}
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return 0
}
