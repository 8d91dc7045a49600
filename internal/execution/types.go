package execution

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"swap-signal-trader/internal/risk"
	"swap-signal-trader/internal/signal"
	"swap-signal-trader/internal/trade"
)

// Outcome 为一次信号处理的最终结果类别。
type Outcome string

const (
	OutcomeSkipped  Outcome = "skipped"
	OutcomeExecuted Outcome = "executed"
	OutcomeFailed   Outcome = "failed"
)

// SkipReason 说明信号被跳过的原因，跳过不视为错误。
type SkipReason string

const (
	SkipBusy                SkipReason = "busy"
	SkipDuplicate           SkipReason = "duplicate"
	SkipPositionAlreadyOpen SkipReason = "position_already_open"
)

// ErrorKind 为失败结果的分类。
type ErrorKind string

const (
	KindRejectedSignal        ErrorKind = "rejected_signal"
	KindPositionUnknown       ErrorKind = "position_unknown"
	KindInsufficientBalance   ErrorKind = "insufficient_balance"
	KindInsufficientSize      ErrorKind = "insufficient_size"
	KindMarketData            ErrorKind = "market_data"
	KindLeverageConfiguration ErrorKind = "leverage_configuration"
	KindEntryRejected         ErrorKind = "entry_rejected"
)

// ErrLeverageConfiguration 表示两种参数形态的杠杆设置均被拒绝。
var ErrLeverageConfiguration = errors.New("execution: leverage configuration failed")

// Failure 描述失败结果，同时实现 error 接口。
type Failure struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail"`
	err    error
}

func newFailure(kind ErrorKind, err error) *Failure {
	return &Failure{Kind: kind, Detail: err.Error(), err: err}
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func (f *Failure) Unwrap() error {
	return f.err
}

// EntryOrder 为已受理的开仓委托。
type EntryOrder struct {
	OrderID        string          `json:"order_id"`
	ClientOrderID  string          `json:"client_order_id"`
	Side           trade.Side      `json:"side"`
	Quantity       decimal.Decimal `json:"quantity"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
	// PriceSource 标记参考价来源：fill、last 或 quote。
	PriceSource string `json:"price_source"`
}

// ProtectionSpec 为根据开仓方向与参考价计算出的止盈止损触发价。
type ProtectionSpec struct {
	TakeProfitTrigger decimal.Decimal `json:"take_profit_trigger"`
	StopLossTrigger   decimal.Decimal `json:"stop_loss_trigger"`
	ClosingSide       trade.Side      `json:"closing_side"`
}

// ProtectionStatus 为保护单挂载结果。
type ProtectionStatus string

const (
	ProtectionAttached ProtectionStatus = "attached"
	ProtectionFailed   ProtectionStatus = "failed"
)

// Attempt 记录一次保护单形态的尝试。
type Attempt struct {
	Strategy trade.ProtectionShape `json:"strategy"`
	OrderIDs []string              `json:"order_ids,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// ProtectionResult 汇总保护单挂载过程。
type ProtectionResult struct {
	Status   ProtectionStatus      `json:"status"`
	Strategy trade.ProtectionShape `json:"strategy,omitempty"`
	Spec     ProtectionSpec        `json:"spec"`
	OrderIDs []string              `json:"order_ids,omitempty"`
	Attempts []Attempt             `json:"attempts"`
}

// Result 为一次信号处理的结果，Outcome 决定哪些字段有效。
type Result struct {
	Outcome    Outcome           `json:"outcome"`
	Signal     signal.Signal     `json:"signal"`
	SkipReason SkipReason        `json:"skip_reason,omitempty"`
	Order      *risk.SizedOrder  `json:"order,omitempty"`
	Entry      *EntryOrder       `json:"entry,omitempty"`
	Protection *ProtectionResult `json:"protection,omitempty"`
	Failure    *Failure          `json:"failure,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Unprotected 表示已开仓但所有保护单形态均失败。
func (r Result) Unprotected() bool {
	return r.Outcome == OutcomeExecuted && r.Protection != nil && r.Protection.Status == ProtectionFailed
}
