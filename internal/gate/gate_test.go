package gate

import (
	"errors"
	"sync"
	"testing"
	"time"

	"swap-signal-trader/internal/signal"
)

const testSymbol = "BTC/USDT:USDT"

func mustSignal(t *testing.T, dir string, at time.Time) signal.Signal {
	t.Helper()
	sig, err := signal.Parse(dir, testSymbol, at)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	return sig
}

func TestAdmit_DuplicateWithinCooldown(t *testing.T) {
	g := New(time.Minute, nil)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	release, err := g.Admit(mustSignal(t, "buy", start))
	if err != nil {
		t.Fatalf("first admission failed: %v", err)
	}
	release()

	if _, err := g.Admit(mustSignal(t, "buy", start.Add(30*time.Second))); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	release, err = g.Admit(mustSignal(t, "buy", start.Add(61*time.Second)))
	if err != nil {
		t.Fatalf("expected admission after cooldown, got %v", err)
	}
	release()
}

func TestAdmit_OppositeDirectionNotDuplicate(t *testing.T) {
	g := New(time.Minute, nil)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	release, err := g.Admit(mustSignal(t, "buy", start))
	if err != nil {
		t.Fatalf("first admission failed: %v", err)
	}
	release()

	release, err = g.Admit(mustSignal(t, "sell", start.Add(5*time.Second)))
	if err != nil {
		t.Fatalf("opposite direction should be admitted, got %v", err)
	}
	release()

	// 最近一次准入已变为 sell，再来 buy 也不算重复。
	release, err = g.Admit(mustSignal(t, "buy", start.Add(10*time.Second)))
	if err != nil {
		t.Fatalf("buy after sell should be admitted, got %v", err)
	}
	release()
}

func TestAdmit_RejectionDoesNotUpdateRecord(t *testing.T) {
	g := New(time.Minute, nil)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	release, err := g.Admit(mustSignal(t, "buy", start))
	if err != nil {
		t.Fatalf("first admission failed: %v", err)
	}
	release()

	if _, err := g.Admit(mustSignal(t, "buy", start.Add(50*time.Second))); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// 冷却计时仍从首次准入开始。
	release, err = g.Admit(mustSignal(t, "buy", start.Add(65*time.Second)))
	if err != nil {
		t.Fatalf("expected admission 65s after first buy, got %v", err)
	}
	release()
}

func TestAdmit_BusyWhileInflight(t *testing.T) {
	g := New(time.Minute, nil)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	release, err := g.Admit(mustSignal(t, "buy", start))
	if err != nil {
		t.Fatalf("first admission failed: %v", err)
	}
	if !g.Inflight(testSymbol) {
		t.Fatalf("expected inflight after admission")
	}

	if _, err := g.Admit(mustSignal(t, "sell", start.Add(time.Second))); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	release()
	release()
	if g.Inflight(testSymbol) {
		t.Fatalf("expected inflight cleared after release")
	}
}

func TestAdmit_SymbolsIndependent(t *testing.T) {
	g := New(time.Minute, nil)
	now := time.Now()

	a, err := signal.Parse("buy", "BTC/USDT:USDT", now)
	if err != nil {
		t.Fatal(err)
	}
	b, err := signal.Parse("buy", "ETH/USDT:USDT", now)
	if err != nil {
		t.Fatal(err)
	}

	releaseA, err := g.Admit(a)
	if err != nil {
		t.Fatalf("admit BTC: %v", err)
	}
	defer releaseA()
	releaseB, err := g.Admit(b)
	if err != nil {
		t.Fatalf("admit ETH while BTC inflight: %v", err)
	}
	releaseB()
}

func TestAdmit_ConcurrentExactlyOne(t *testing.T) {
	g := New(time.Minute, nil)
	now := time.Now()

	const workers = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		busy     int
		releases []func()
	)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		dir := "buy"
		if i%2 == 1 {
			dir = "sell"
		}
		sig := mustSignal(t, dir, now)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			release, err := g.Admit(sig)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
				releases = append(releases, release)
			case errors.Is(err, ErrBusy):
				busy++
			}
		}()
	}

	close(start)
	wg.Wait()

	if admitted != 1 {
		t.Fatalf("expected exactly one admission, got %d", admitted)
	}
	if busy != workers-1 {
		t.Fatalf("expected %d busy rejections, got %d", workers-1, busy)
	}
	for _, r := range releases {
		r()
	}
}
