package signal

import (
	"errors"
	"testing"
	"time"

	"swap-signal-trader/internal/trade"
)

func TestParse(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		input   string
		want    Direction
		wantErr bool
	}{
		{name: "buy", input: "buy", want: Buy},
		{name: "sell", input: "sell", want: Sell},
		{name: "upper case", input: "BUY", wantErr: true},
		{name: "padded", input: " sell ", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "close", input: "close", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig, err := Parse(tc.input, "BTC/USDT:USDT", at)
			if tc.wantErr {
				if !errors.Is(err, ErrUnknownDirection) {
					t.Fatalf("expected ErrUnknownDirection, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			if sig.Direction != tc.want {
				t.Errorf("direction = %s, want %s", sig.Direction, tc.want)
			}
			if !sig.ReceivedAt.Equal(at) {
				t.Errorf("received_at not preserved")
			}
		})
	}
}

func TestParseDefaultsReceivedAt(t *testing.T) {
	sig, err := Parse("buy", "", time.Time{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if sig.ReceivedAt.IsZero() {
		t.Fatalf("expected received_at to be stamped")
	}
}

func TestDirectionSide(t *testing.T) {
	if Buy.Side() != trade.SideBuy {
		t.Errorf("buy side mismatch")
	}
	if Sell.Side() != trade.SideSell {
		t.Errorf("sell side mismatch")
	}
}
