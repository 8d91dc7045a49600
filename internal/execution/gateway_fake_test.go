package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"swap-signal-trader/internal/trade"
)

// fakeGateway 记录调用顺序，并按配置返回结果。
type fakeGateway struct {
	mu sync.Mutex

	balance     decimal.Decimal
	balanceErr  error
	price       decimal.Decimal
	priceErr    error
	lastPrices  []decimal.Decimal
	market      trade.Market
	position    decimal.Decimal
	positionErr error

	leverageErrs []error
	entryAck     trade.OrderAck
	entryErr     error
	// rejectShapes 中的形态会被拒绝。
	rejectShapes map[trade.ProtectionShape]error
	splitSLErr   error

	// entryHook 在提交市价单时调用，用于并发测试。
	entryHook func()

	calls          []string
	leverageReqs   []trade.LeverageRequest
	marketOrders   []trade.MarketOrder
	protections    []trade.ProtectionOrder
	protectionSeq  int
	priceCallCount int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		balance:  decimal.NewFromInt(1000),
		price:    decimal.NewFromInt(50000),
		market:   trade.Market{Symbol: "BTC/USDT:USDT", PriceTick: decimal.RequireFromString("0.1")},
		entryAck: trade.OrderAck{ID: "entry-1"},
	}
}

func (f *fakeGateway) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeGateway) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeGateway) count(call string) int {
	n := 0
	for _, c := range f.callNames() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeGateway) FetchFreeBalance(context.Context) (decimal.Decimal, error) {
	f.record("FetchFreeBalance")
	return f.balance, f.balanceErr
}

func (f *fakeGateway) FetchLastPrice(context.Context, string) (decimal.Decimal, error) {
	f.record("FetchLastPrice")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priceCallCount++
	if f.priceCallCount > 1 && len(f.lastPrices) > 0 {
		p := f.lastPrices[0]
		f.lastPrices = f.lastPrices[1:]
		return p, nil
	}
	if f.priceCallCount > 1 && f.priceErr != nil {
		return decimal.Zero, f.priceErr
	}
	return f.price, nil
}

func (f *fakeGateway) Market(context.Context, string) (trade.Market, error) {
	f.record("Market")
	return f.market, nil
}

func (f *fakeGateway) SetLeverage(_ context.Context, req trade.LeverageRequest) error {
	f.record("SetLeverage")
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.leverageReqs)
	f.leverageReqs = append(f.leverageReqs, req)
	if idx < len(f.leverageErrs) {
		return f.leverageErrs[idx]
	}
	return nil
}

func (f *fakeGateway) FetchPositionSize(context.Context, string) (decimal.Decimal, error) {
	f.record("FetchPositionSize")
	return f.position, f.positionErr
}

func (f *fakeGateway) CreateMarketOrder(_ context.Context, order trade.MarketOrder) (trade.OrderAck, error) {
	f.record("CreateMarketOrder")
	if f.entryHook != nil {
		f.entryHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marketOrders = append(f.marketOrders, order)
	if f.entryErr != nil {
		return trade.OrderAck{}, f.entryErr
	}
	ack := f.entryAck
	ack.ClientOrderID = order.ClientOrderID
	return ack, nil
}

func (f *fakeGateway) CreateProtection(_ context.Context, order trade.ProtectionOrder) ([]string, error) {
	f.record("CreateProtection:" + string(order.Shape()))
	f.mu.Lock()
	defer f.mu.Unlock()
	f.protections = append(f.protections, order)

	if err, ok := f.rejectShapes[order.Shape()]; ok {
		return nil, err
	}

	f.protectionSeq++
	if order.Shape() == trade.ShapeSplitConditional {
		tp := fmt.Sprintf("tp-%d", f.protectionSeq)
		if f.splitSLErr != nil {
			return []string{tp}, f.splitSLErr
		}
		return []string{tp, fmt.Sprintf("sl-%d", f.protectionSeq)}, nil
	}
	return []string{fmt.Sprintf("oco-%d", f.protectionSeq)}, nil
}
