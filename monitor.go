package lotterysim

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 抓取结果标签
const (
	FetchOutcomeSuccess   = "success"
	FetchOutcomeInvalid   = "invalid"
	FetchOutcomeTransport = "transport"
	FetchOutcomeCancelled = "cancelled"
	FetchOutcomeExhausted = "exhausted"
	FetchOutcomeError     = "error"
)

// Metrics 指标收集器, 基于独立的 Prometheus Registry.
// 所有方法对 nil 接收者安全, 未启用指标时可直接传 nil.
type Metrics struct {
	registry *prometheus.Registry

	fetchAttempts *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	rounds        *prometheus.CounterVec
	tickets       *prometheus.CounterVec
	winnings      *prometheus.CounterVec
	prizeTiers    *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec

	// 进程内累计值, 用于健康检查摘要
	totalRounds   int64
	totalTickets  int64
	totalWinnings int64
	startTime     int64
}

// MetricsSnapshot 指标快照
type MetricsSnapshot struct {
	TotalRounds   int64         `json:"total_rounds"`
	TotalTickets  int64         `json:"total_tickets"`
	TotalWinnings int64         `json:"total_winnings"`
	Uptime        time.Duration `json:"uptime"`
}

// NewMetrics 创建指标收集器
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}

	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now().UnixNano(),
	}

	m.fetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Number of HTTP attempts per data source and outcome",
		},
		[]string{"source", "outcome"},
	)

	m.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Time taken by a whole fetch including retries",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"source", "outcome"},
	)

	m.rounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "rounds_total",
			Help:      "Number of rounds played",
		},
		[]string{"game", "multiplier"},
	)

	m.tickets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "tickets_total",
			Help:      "Number of tickets scored",
		},
		[]string{"game"},
	)

	m.winnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "winnings_dollars_total",
			Help:      "Sum of winnings paid out",
		},
		[]string{"game"},
	)

	m.prizeTiers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "prize_tier_hits_total",
			Help:      "Number of tickets that hit each paying tier",
		},
		[]string{"game", "tier"},
	)

	m.breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open, -1=disabled)",
		},
		[]string{"name"},
	)

	m.registry.MustRegister(
		m.fetchAttempts,
		m.fetchDuration,
		m.rounds,
		m.tickets,
		m.winnings,
		m.prizeTiers,
		m.breakerState,
	)
	return m
}

// Registry 返回底层 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncFetchAttempt 记录一次 HTTP 尝试
func (m *Metrics) IncFetchAttempt(source, outcome string) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(source, outcome).Inc()
}

// ObserveFetch 记录一次完整抓取的耗时
func (m *Metrics) ObserveFetch(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(source, outcome).Observe(d.Seconds())
}

// RecordRound 记录一轮游戏
func (m *Metrics) RecordRound(round *Round) {
	if m == nil || round == nil {
		return
	}

	game := round.Game
	multiplier := "no"
	if round.MultiplierPurchased {
		multiplier = "yes"
	}
	m.rounds.WithLabelValues(game, multiplier).Inc()
	m.tickets.WithLabelValues(game).Add(float64(len(round.Plays)))
	m.winnings.WithLabelValues(game).Add(float64(round.TotalWinnings))
	for _, play := range round.Plays {
		if play.Prize.IsWinner() {
			m.prizeTiers.WithLabelValues(game, play.Prize.Tier).Inc()
		}
	}

	atomic.AddInt64(&m.totalRounds, 1)
	atomic.AddInt64(&m.totalTickets, int64(len(round.Plays)))
	atomic.AddInt64(&m.totalWinnings, round.TotalWinnings)
}

// SetBreakerState 记录熔断器状态
func (m *Metrics) SetBreakerState(name, state string) {
	if m == nil {
		return
	}

	value := -1.0
	switch state {
	case "closed":
		value = 0
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(name).Set(value)
}

// Snapshot 获取指标快照
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		TotalRounds:   atomic.LoadInt64(&m.totalRounds),
		TotalTickets:  atomic.LoadInt64(&m.totalTickets),
		TotalWinnings: atomic.LoadInt64(&m.totalWinnings),
		Uptime:        time.Duration(time.Now().UnixNano() - atomic.LoadInt64(&m.startTime)),
	}
}
