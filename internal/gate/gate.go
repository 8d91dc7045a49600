package gate

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"swap-signal-trader/internal/signal"
)

// DefaultCooldown 为同向重复信号的默认冷却时间。
const DefaultCooldown = 60 * time.Second

var (
	// ErrBusy 表示该交易对已有执行在进行中。
	ErrBusy = errors.New("gate: execution already inflight")
	// ErrDuplicate 表示冷却时间内收到同向信号。
	ErrDuplicate = errors.New("gate: duplicate signal within cooldown")
)

type symbolState struct {
	lastDirection signal.Direction
	lastAdmitted  time.Time
	inflight      bool
}

// Gate 按交易对串行化执行并抑制冷却期内的重复信号。
// 状态仅保存在进程内存中，重启即清空。
type Gate struct {
	mu       sync.Mutex
	states   map[string]*symbolState
	cooldown time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// New 创建准入闸门。cooldown<=0 时使用默认值。
func New(cooldown time.Duration, logger *zap.Logger) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		states:   make(map[string]*symbolState),
		cooldown: cooldown,
		now:      time.Now,
		logger:   logger,
	}
}

// Admit 原子地完成检查与占位。成功时返回的 release 必须在流水线结束时调用，可重复调用。
func (g *Gate) Admit(sig signal.Signal) (func(), error) {
	key := strings.ToUpper(sig.Symbol)
	at := sig.ReceivedAt
	if at.IsZero() {
		at = g.now()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok := g.states[key]
	if !ok {
		state = &symbolState{}
		g.states[key] = state
	}

	if state.inflight {
		return nil, ErrBusy
	}

	if !state.lastAdmitted.IsZero() &&
		state.lastDirection == sig.Direction &&
		at.Sub(state.lastAdmitted) < g.cooldown {
		g.logger.Info("冷却期内的重复信号已忽略",
			zap.String("symbol", sig.Symbol),
			zap.String("direction", string(sig.Direction)),
			zap.Duration("since_last", at.Sub(state.lastAdmitted)),
		)
		return nil, ErrDuplicate
	}

	state.inflight = true
	state.lastDirection = sig.Direction
	state.lastAdmitted = at

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			state.inflight = false
			g.mu.Unlock()
		})
	}
	return release, nil
}

// Inflight 返回交易对当前是否有执行在进行中。
func (g *Gate) Inflight(symbol string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.states[strings.ToUpper(symbol)]
	return ok && state.inflight
}
