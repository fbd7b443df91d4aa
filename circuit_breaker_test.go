package lotterysim

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDoer 按顺序返回预设的状态码或错误
type stubDoer struct {
	calls  int
	status int
	err    error
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(strings.NewReader("<html></html>")),
		Request:    req,
	}, nil
}

func testBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Enabled:      true,
		Name:         "test-breaker",
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.6,
		MinRequests:  3,
	}
}

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)
	return req
}

func TestBreakerDoer_Disabled(t *testing.T) {
	doer := &stubDoer{err: errors.New("connection refused")}
	config := testBreakerConfig()
	config.Enabled = false
	breaker := NewBreakerDoer(doer, config, nil, nil)

	for i := 0; i < 10; i++ {
		_, err := breaker.Do(newRequest(t))
		assert.EqualError(t, err, "connection refused")
	}
	assert.Equal(t, 10, doer.calls)
	assert.Equal(t, "disabled", breaker.State())
	assert.Equal(t, true, breaker.HealthCheck()["healthy"])
}

func TestBreakerDoer_TripsOnTransportErrors(t *testing.T) {
	doer := &stubDoer{err: errors.New("connection refused")}
	metrics := NewMetrics("breakertest")
	breaker := NewBreakerDoer(doer, testBreakerConfig(), nil, metrics)
	assert.Equal(t, "closed", breaker.State())

	for i := 0; i < 3; i++ {
		_, err := breaker.Do(newRequest(t))
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrCircuitBreakerOpen))
	}

	assert.Equal(t, "open", breaker.State())
	assert.Equal(t, 2.0, metricValue(t, metrics.breakerState.WithLabelValues("test-breaker")))

	_, err := breaker.Do(newRequest(t))
	assert.True(t, errors.Is(err, ErrCircuitBreakerOpen))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 3, doer.calls, "open breaker must not reach the doer")

	health := breaker.HealthCheck()
	assert.Equal(t, false, health["healthy"])
	assert.Equal(t, "open", health["state"])

	breaker.Reset()
	assert.Equal(t, "closed", breaker.State())
	assert.Equal(t, 0.0, metricValue(t, metrics.breakerState.WithLabelValues("test-breaker")))
}

func TestBreakerDoer_ServerErrorsCountAsFailures(t *testing.T) {
	doer := &stubDoer{status: http.StatusBadGateway}
	breaker := NewBreakerDoer(doer, testBreakerConfig(), nil, nil)

	for i := 0; i < 3; i++ {
		resp, err := breaker.Do(newRequest(t))
		require.NoError(t, err, "5xx responses are still returned to the caller")
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		resp.Body.Close()
	}

	assert.Equal(t, "open", breaker.State())
	_, err := breaker.Do(newRequest(t))
	assert.True(t, errors.Is(err, ErrCircuitBreakerOpen))
}

func TestBreakerDoer_ClientErrorsDoNotTrip(t *testing.T) {
	doer := &stubDoer{status: http.StatusNotFound}
	breaker := NewBreakerDoer(doer, testBreakerConfig(), nil, nil)

	for i := 0; i < 5; i++ {
		resp, err := breaker.Do(newRequest(t))
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, "closed", breaker.State())
	assert.Equal(t, uint32(5), breaker.Counts().Requests)
	assert.Equal(t, uint32(0), breaker.Counts().TotalFailures)
}

// doerFunc 以函数实现 HTTPDoer, 可并发调用
type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func TestBreakerDoer_ResetWhileServing(t *testing.T) {
	var calls int64
	doer := doerFunc(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt64(&calls, 1)
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("<html></html>")),
			Request:    req,
		}, nil
	})
	breaker := NewBreakerDoer(doer, testBreakerConfig(), nil, NewMetrics("resettest"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				resp, err := breaker.Do(newRequest(t))
				if assert.NoError(t, err) {
					resp.Body.Close()
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			breaker.Reset()
			_ = breaker.HealthCheck()
		}
	}()
	wg.Wait()

	assert.Equal(t, int64(400), atomic.LoadInt64(&calls))
	assert.Equal(t, "closed", breaker.State())
}
