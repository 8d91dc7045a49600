package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SignalsTotal 按结果统计处理过的信号。
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_signals_total", Help: "Signals processed by outcome"},
		[]string{"symbol", "outcome", "reason"},
	)
	// ProtectionAttemptsTotal 统计每种保护单形态的尝试结果。
	ProtectionAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_protection_attempts_total", Help: "Protective order attempts by strategy"},
		[]string{"strategy", "result"},
	)
	// OrdersTotal 统计提交成功的委托。
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_orders_total", Help: "Orders accepted by the exchange"},
		[]string{"symbol", "side", "kind"},
	)
)

func init() {
	prometheus.MustRegister(SignalsTotal, ProtectionAttemptsTotal, OrdersTotal)
}

// Handler 返回默认注册表的 Prometheus 抓取接口。
func Handler() http.Handler {
	return promhttp.Handler()
}
