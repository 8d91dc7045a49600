package execution

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"swap-signal-trader/internal/risk"
	"swap-signal-trader/internal/trade"
)

func newTestEntry(gw *fakeGateway) *EntryExecutor {
	e := NewEntryExecutor(gw, EntryOptions{Leverage: 5, MarginMode: trade.MarginIsolated}, nil)
	e.newOrderID = func() string { return "cid1" }
	return e
}

func TestConfigureLeverage_FullAccepted(t *testing.T) {
	gw := newFakeGateway()
	e := newTestEntry(gw)

	if err := e.ConfigureLeverage(context.Background(), mustSignal(t, "sell")); err != nil {
		t.Fatalf("ConfigureLeverage returned error: %v", err)
	}
	if len(gw.leverageReqs) != 1 {
		t.Fatalf("expected a single request, got %d", len(gw.leverageReqs))
	}
	req := gw.leverageReqs[0]
	if req.Leverage != 5 || req.MarginMode != trade.MarginIsolated || req.PositionSide != trade.PositionSideShort {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestConfigureLeverage_RetriesReduced(t *testing.T) {
	gw := newFakeGateway()
	gw.leverageErrs = []error{errors.New("posSide invalid")}
	e := newTestEntry(gw)

	if err := e.ConfigureLeverage(context.Background(), mustSignal(t, "buy")); err != nil {
		t.Fatalf("ConfigureLeverage returned error: %v", err)
	}
	if len(gw.leverageReqs) != 2 {
		t.Fatalf("expected retry, got %d requests", len(gw.leverageReqs))
	}
	if gw.leverageReqs[1].PositionSide != "" {
		t.Fatalf("reduced request must not carry a position side: %+v", gw.leverageReqs[1])
	}
}

func TestConfigureLeverage_BothRejected(t *testing.T) {
	gw := newFakeGateway()
	first, second := errors.New("full rejected"), errors.New("reduced rejected")
	gw.leverageErrs = []error{first, second}
	e := newTestEntry(gw)

	err := e.ConfigureLeverage(context.Background(), mustSignal(t, "buy"))
	if !errors.Is(err, ErrLeverageConfiguration) {
		t.Fatalf("expected ErrLeverageConfiguration, got %v", err)
	}
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("both causes should be retained, got %v", err)
	}
}

func TestEnter_UsesFillPrice(t *testing.T) {
	gw := newFakeGateway()
	gw.entryAck = trade.OrderAck{ID: "o-1", AveragePrice: dec("50010.5")}
	e := newTestEntry(gw)
	sized := risk.SizedOrder{Quantity: dec("0.04"), ReferencePrice: dec("50000")}

	entry, err := e.Enter(context.Background(), mustSignal(t, "buy"), sized)
	if err != nil {
		t.Fatalf("Enter returned error: %v", err)
	}
	if entry.PriceSource != priceSourceFill || !entry.ReferencePrice.Equal(dec("50010.5")) {
		t.Fatalf("unexpected reference %+v", entry)
	}
	if gw.count("FetchLastPrice") != 0 {
		t.Fatalf("fill price available, last price must not be queried")
	}

	order := gw.marketOrders[0]
	if order.Side != trade.SideBuy || !order.Amount.Equal(dec("0.04")) || order.ClientOrderID != "cid1" {
		t.Fatalf("unexpected market order %+v", order)
	}
	if entry.OrderID != "o-1" || entry.ClientOrderID != "cid1" {
		t.Fatalf("unexpected ids %+v", entry)
	}
}

func TestEnter_FallsBackToLastPrice(t *testing.T) {
	gw := newFakeGateway()
	gw.priceCallCount = 1
	gw.lastPrices = []decimal.Decimal{dec("50100")}
	e := newTestEntry(gw)
	sized := risk.SizedOrder{Quantity: dec("0.04"), ReferencePrice: dec("50000")}

	entry, err := e.Enter(context.Background(), mustSignal(t, "buy"), sized)
	if err != nil {
		t.Fatalf("Enter returned error: %v", err)
	}
	if entry.PriceSource != priceSourceLast || !entry.ReferencePrice.Equal(dec("50100")) {
		t.Fatalf("unexpected reference %+v", entry)
	}
}

func TestEnter_FallsBackToQuote(t *testing.T) {
	gw := newFakeGateway()
	gw.priceCallCount = 1
	gw.priceErr = errors.New("ticker unavailable")
	e := newTestEntry(gw)
	sized := risk.SizedOrder{Quantity: dec("0.04"), ReferencePrice: dec("49990")}

	entry, err := e.Enter(context.Background(), mustSignal(t, "sell"), sized)
	if err != nil {
		t.Fatalf("Enter returned error: %v", err)
	}
	if entry.PriceSource != priceSourceQuote || !entry.ReferencePrice.Equal(dec("49990")) {
		t.Fatalf("unexpected reference %+v", entry)
	}
}

func TestEnter_Rejected(t *testing.T) {
	gw := newFakeGateway()
	gw.entryErr = errors.New("insufficient margin")
	e := newTestEntry(gw)

	_, err := e.Enter(context.Background(), mustSignal(t, "buy"), risk.SizedOrder{Quantity: dec("1"), ReferencePrice: dec("1")})
	if err == nil || !errors.Is(err, gw.entryErr) {
		t.Fatalf("expected wrapped rejection, got %v", err)
	}
}

func TestNewClientOrderID(t *testing.T) {
	id := newClientOrderID()
	if len(id) != 32 || strings.Contains(id, "-") {
		t.Fatalf("unexpected client order id %q", id)
	}
	if id == newClientOrderID() {
		t.Fatalf("client order ids must be unique")
	}
}
