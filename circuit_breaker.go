package lotterysim

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/sony/gobreaker"
)

// errServerStatus 标记 5xx 响应, 使熔断器计为失败但仍返回响应
var errServerStatus = errors.New("server error status")

// BreakerDoer 带熔断器的 HTTP 客户端, 可被多个 goroutine 共享
type BreakerDoer struct {
	doer HTTPDoer

	// Reset 会整体替换熔断器实例
	breaker atomic.Pointer[gobreaker.CircuitBreaker]
	logger  Logger
	config  *CircuitBreakerConfig
	metrics *Metrics
}

// NewBreakerDoer 创建带熔断器的 HTTP 客户端
func NewBreakerDoer(doer HTTPDoer, config *CircuitBreakerConfig, logger Logger, metrics *Metrics) *BreakerDoer {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if doer == nil {
		doer = &http.Client{Timeout: DefaultFetchTimeout}
	}

	d := &BreakerDoer{
		doer:    doer,
		logger:  loggerOrSilent(logger),
		config:  config,
		metrics: metrics,
	}
	if !config.Enabled {
		// 如果熔断器未启用，返回一个透传的包装器
		return d
	}

	d.breaker.Store(gobreaker.NewCircuitBreaker(d.settings()))
	d.metrics.SetBreakerState(config.Name, d.State())
	return d
}

func (d *BreakerDoer) settings() gobreaker.Settings {
	config := d.config
	return gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// 当请求数达到最小要求且失败率超过阈值时触发熔断
			return counts.Requests >= config.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if config.OnStateChange {
				d.logger.Info("Circuit breaker '%s' state changed from %s to %s", name, from, to)
			}
			d.metrics.SetBreakerState(name, stateName(to))
		},
	}
}

// Do 使用熔断器执行请求
func (d *BreakerDoer) Do(req *http.Request) (*http.Response, error) {
	cb := d.breaker.Load()
	if cb == nil {
		// 熔断器未启用，直接执行
		return d.doer.Do(req)
	}

	result, err := cb.Execute(func() (any, error) {
		resp, err := d.doer.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return nil, ErrCircuitBreakerOpen.WithDetails("circuit breaker is open, requests are being rejected")
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, ErrCircuitBreakerOpen.WithDetails("too many requests, circuit breaker is half-open")
	case errors.Is(err, errServerStatus):
		return result.(*http.Response), nil
	case err != nil:
		return nil, err
	}
	return result.(*http.Response), nil
}

// State 获取熔断器状态
func (d *BreakerDoer) State() string {
	cb := d.breaker.Load()
	if cb == nil {
		return "disabled"
	}
	return stateName(cb.State())
}

// Counts 获取熔断器统计信息
func (d *BreakerDoer) Counts() gobreaker.Counts {
	cb := d.breaker.Load()
	if cb == nil {
		return gobreaker.Counts{}
	}
	return cb.Counts()
}

// Reset 重置熔断器 (gobreaker 没有 Reset 方法, 重新创建实例)
func (d *BreakerDoer) Reset() {
	if d.breaker.Load() == nil {
		return
	}
	d.breaker.Store(gobreaker.NewCircuitBreaker(d.settings()))
	d.metrics.SetBreakerState(d.config.Name, d.State())
	d.logger.Info("Circuit breaker '%s' has been reset (recreated)", d.config.Name)
}

// HealthCheck 熔断器健康检查
func (d *BreakerDoer) HealthCheck() map[string]any {
	result := map[string]any{
		"circuit_breaker_enabled": d.config.Enabled,
	}
	if d.breaker.Load() == nil {
		result["state"] = "disabled"
		result["healthy"] = true
		return result
	}

	state := d.State()
	counts := d.Counts()
	result["state"] = state
	result["requests"] = counts.Requests
	result["total_failures"] = counts.TotalFailures
	result["consecutive_failures"] = counts.ConsecutiveFailures

	healthy := true
	switch state {
	case "open":
		healthy = false
	case "half-open":
		// 半开状态下，如果连续失败次数过多，认为不健康
		if counts.ConsecutiveFailures > 2 {
			healthy = false
		}
	}
	result["healthy"] = healthy
	return result
}

func stateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
