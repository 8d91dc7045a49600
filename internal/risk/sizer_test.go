package risk

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"swap-signal-trader/internal/trade"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSize_RiskBasedExample(t *testing.T) {
	policy := RiskBased(0.02, 0.01)
	sized, err := Size(dec("1000"), dec("50000"), policy, trade.Market{})
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	if !sized.Quantity.Equal(dec("0.04")) {
		t.Fatalf("quantity = %s, want 0.04", sized.Quantity)
	}
	if !sized.ReferencePrice.Equal(dec("50000")) {
		t.Fatalf("reference price = %s, want 50000", sized.ReferencePrice)
	}
}

func TestSize_RiskBasedFormula(t *testing.T) {
	policy := RiskBased(0.02, 0.01)
	market := trade.Market{AmountStep: dec("0.001")}

	cases := []struct {
		balance string
		price   string
	}{
		{"1000", "50000"},
		{"2500.5", "3120.7"},
		{"87.13", "0.5123"},
		{"100000", "64321.9"},
	}

	for _, tc := range cases {
		b, p := dec(tc.balance), dec(tc.price)
		sized, err := Size(b, p, policy, market)
		if err != nil {
			t.Fatalf("Size(%s,%s) returned error: %v", tc.balance, tc.price, err)
		}
		raw := b.Mul(dec("0.02")).Div(p.Mul(dec("0.01")))
		want := raw.Div(dec("0.001")).Floor().Mul(dec("0.001"))
		if !sized.Quantity.Equal(want) {
			t.Errorf("Size(%s,%s) = %s, want %s", tc.balance, tc.price, sized.Quantity, want)
		}
		if sized.Quantity.GreaterThan(raw) {
			t.Errorf("quantity %s must never exceed raw %s", sized.Quantity, raw)
		}
	}
}

func TestSize_ConvertsToContracts(t *testing.T) {
	market := trade.Market{
		Contract:     true,
		ContractSize: dec("0.01"),
		AmountStep:   dec("0.01"),
		MinAmount:    dec("0.01"),
	}
	sized, err := Size(dec("1000"), dec("50000"), RiskBased(0.02, 0.01), market)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	if !sized.Quantity.Equal(dec("4")) {
		t.Fatalf("expected 4 contracts, got %s", sized.Quantity)
	}
	if !sized.BaseQuantity.Equal(dec("0.04")) {
		t.Fatalf("expected base quantity 0.04, got %s", sized.BaseQuantity)
	}
}

func TestSize_FullBalance(t *testing.T) {
	policy := FullBalance(0.5, 5)
	sized, err := Size(dec("1000"), dec("50000"), policy, trade.Market{AmountStep: dec("0.0001")})
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	// 1000*0.5*5/50000 = 0.05
	if !sized.Quantity.Equal(dec("0.05")) {
		t.Fatalf("quantity = %s, want 0.05", sized.Quantity)
	}
}

func TestSize_Rejections(t *testing.T) {
	policy := RiskBased(0.02, 0.01)

	if _, err := Size(dec("0"), dec("50000"), policy, trade.Market{}); !errors.Is(err, ErrInsufficientSize) {
		t.Errorf("zero balance: expected ErrInsufficientSize, got %v", err)
	}
	if _, err := Size(dec("-5"), dec("50000"), policy, trade.Market{}); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("negative balance: expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := Size(dec("1000"), dec("0"), policy, trade.Market{}); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("zero price: expected ErrInvalidPrice, got %v", err)
	}

	// 0.04 BTC = 4 张，最小下单 10 张时不允许向上取整。
	market := trade.Market{Contract: true, ContractSize: dec("0.01"), AmountStep: dec("1"), MinAmount: dec("10")}
	if _, err := Size(dec("1000"), dec("50000"), policy, market); !errors.Is(err, ErrInsufficientSize) {
		t.Errorf("below minimum: expected ErrInsufficientSize, got %v", err)
	}

	// 取整到整数张后为 0。
	tiny := trade.Market{Contract: true, ContractSize: dec("1"), AmountStep: dec("1")}
	if _, err := Size(dec("1000"), dec("50000"), policy, tiny); !errors.Is(err, ErrInsufficientSize) {
		t.Errorf("floored to zero: expected ErrInsufficientSize, got %v", err)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := RiskBased(0.02, 0.01).Validate(); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}
	if err := RiskBased(0.02, 0).Validate(); err == nil {
		t.Fatalf("expected zero stop loss fraction to be rejected")
	}
	if err := FullBalance(0.9, 5).Validate(); err != nil {
		t.Fatalf("valid full balance policy rejected: %v", err)
	}
	if err := FullBalance(0, 0).Validate(); err == nil {
		t.Fatalf("expected invalid full balance policy to be rejected")
	}
	if err := (Policy{Mode: "martingale"}).Validate(); err == nil {
		t.Fatalf("expected unknown mode to be rejected")
	}
}
