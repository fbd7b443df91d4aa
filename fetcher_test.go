package lotterysim

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const jackpotPage = `<html><body>
<dd class="c-next-draw-card__prize-value">$162 Million</dd>
<time class="c-next-draw-card__date">
	Wed, May 1, 2024
</time>
</body></html>`

func testSource(url string) DataSource {
	return DataSource{
		Name:             "test",
		URL:              url,
		JackpotSelector:  lotteryUSAJackpot,
		DrawDateSelector: lotteryUSADrawDate,
		AmountScale:      1_000_000,
	}
}

// recordSleep records backoff delays instead of waiting
func recordSleep(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func newTestServer(t *testing.T, handler func(n int32, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(atomic.AddInt32(&hits, 1), w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestJackpotFetcher_Fetch(t *testing.T) {
	t.Run("first_attempt_success", func(t *testing.T) {
		srv, hits := newTestServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(jackpotPage))
		})

		var delays []time.Duration
		f := NewJackpotFetcher(WithSleepFunc(recordSleep(&delays)))

		result, err := f.Fetch(context.Background(), testSource(srv.URL))
		require.NoError(t, err)

		assert.Equal(t, int32(1), atomic.LoadInt32(hits))
		assert.Empty(t, delays)
		assert.Equal(t, 1, result.Attempts)
		assert.Equal(t, "$162 Million", result.JackpotText)
		assert.Equal(t, int64(162_000_000), result.Jackpot)
		assert.Equal(t, "Wed, May 1, 2024", result.DrawDate)
		assert.True(t, result.HasJackpot())
		assert.True(t, result.HasDrawDate())
		assert.Equal(t, "test", result.Source)
	})

	t.Run("retries_after_non_markup_body", func(t *testing.T) {
		srv, hits := newTestServer(t, func(n int32, w http.ResponseWriter, _ *http.Request) {
			if n == 1 {
				_, _ = w.Write([]byte("Service temporarily unavailable"))
				return
			}
			_, _ = w.Write([]byte(jackpotPage))
		})

		var delays []time.Duration
		f := NewJackpotFetcher(WithSleepFunc(recordSleep(&delays)))

		result, err := f.Fetch(context.Background(), testSource(srv.URL))
		require.NoError(t, err)

		assert.Equal(t, int32(2), atomic.LoadInt32(hits))
		assert.Equal(t, 2, result.Attempts)
		assert.Equal(t, []time.Duration{DefaultFetchBackoff}, delays)
	})

	t.Run("non_2xx_status_is_retried", func(t *testing.T) {
		srv, hits := newTestServer(t, func(n int32, w http.ResponseWriter, _ *http.Request) {
			if n < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("<html>maintenance</html>"))
				return
			}
			_, _ = w.Write([]byte(jackpotPage))
		})

		var delays []time.Duration
		f := NewJackpotFetcher(WithSleepFunc(recordSleep(&delays)))

		result, err := f.Fetch(context.Background(), testSource(srv.URL))
		require.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(hits))
		assert.Equal(t, 3, result.Attempts)
		assert.Len(t, delays, 2)
	})

	t.Run("markup_offset", func(t *testing.T) {
		srv, _ := newTestServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("\n\n" + jackpotPage))
		})

		f := NewJackpotFetcher(WithSleepFunc(recordSleep(new([]time.Duration))),
			WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))

		_, err := f.Fetch(context.Background(), testSource(srv.URL))
		assert.True(t, errors.Is(err, ErrFetchAttemptsExhausted))

		source := testSource(srv.URL)
		source.MarkupOffset = 2
		result, err := f.Fetch(context.Background(), source)
		require.NoError(t, err)
		assert.Equal(t, int64(162_000_000), result.Jackpot)
	})

	t.Run("attempts_exhausted", func(t *testing.T) {
		srv, hits := newTestServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{}"))
		})

		var delays []time.Duration
		policy := RetryPolicy{MaxAttempts: 3, Backoff: time.Second, Multiplier: 2, MaxBackoff: 10 * time.Second}
		f := NewJackpotFetcher(WithRetryPolicy(policy), WithSleepFunc(recordSleep(&delays)))

		result, err := f.Fetch(context.Background(), testSource(srv.URL))
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, ErrFetchAttemptsExhausted))
		assert.True(t, errors.Is(err, ErrFetchValidation), "last validation error is kept as the cause")
		assert.Equal(t, int32(3), atomic.LoadInt32(hits))
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
	})

	t.Run("cancelled_during_backoff", func(t *testing.T) {
		srv, hits := newTestServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not markup"))
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sleep := func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}
		f := NewJackpotFetcher(WithRetryPolicy(RetryPolicy{}), WithSleepFunc(sleep))

		_, err := f.Fetch(ctx, testSource(srv.URL))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFetchCancelled))
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	})

	t.Run("cancelled_before_first_attempt", func(t *testing.T) {
		srv, hits := newTestServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(jackpotPage))
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewJackpotFetcher().Fetch(ctx, testSource(srv.URL))
		assert.True(t, errors.Is(err, ErrFetchCancelled))
		assert.Equal(t, int32(0), atomic.LoadInt32(hits))
	})

	t.Run("transport_failure_is_not_retried", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
		url := srv.URL
		srv.Close()

		var delays []time.Duration
		f := NewJackpotFetcher(WithSleepFunc(recordSleep(&delays)))

		_, err := f.Fetch(context.Background(), testSource(url))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFetchTransport))
		assert.False(t, IsRetryable(err))
		assert.Empty(t, delays)
	})

	t.Run("missing_jackpot_node", func(t *testing.T) {
		srv, _ := newTestServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html><body><p>redesigned page</p></body></html>`))
		})

		result, err := NewJackpotFetcher().Fetch(context.Background(), testSource(srv.URL))
		require.NoError(t, err)
		assert.False(t, result.HasJackpot())
		assert.False(t, result.HasDrawDate())
		assert.Zero(t, result.Jackpot)
	})

	t.Run("missing_draw_date_only", func(t *testing.T) {
		srv, _ := newTestServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html><dd class="x c-next-draw-card__prize-value">$450,000</dd></html>`))
		})

		source := testSource(srv.URL)
		source.AmountScale = 1_000
		result, err := NewJackpotFetcher().Fetch(context.Background(), source)
		require.NoError(t, err)
		assert.True(t, result.HasJackpot())
		assert.False(t, result.HasDrawDate())
		assert.Equal(t, int64(450_000), result.Jackpot)
	})

	t.Run("unparsable_jackpot_amount", func(t *testing.T) {
		tests := []struct {
			name    string
			jackpot string
			logged  string
		}{
			{"no_digits", "Pending", "has no amount"},
			{"scaled_overflow", "$99999999999999 Million", "overflows"},
			{"digit_run_overflow", "$99999999999999999999 Million", "has no amount"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv, _ := newTestServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
					_, _ = w.Write([]byte(`<html><dd class="c-next-draw-card__prize-value">` + tt.jackpot + `</dd></html>`))
				})

				core, logs := observer.New(zapcore.DebugLevel)
				f := NewJackpotFetcher(WithFetcherLogger(NewZapLogger(zap.New(core))))

				result, err := f.Fetch(context.Background(), testSource(srv.URL))
				require.NoError(t, err)
				assert.True(t, result.HasJackpot())
				assert.Equal(t, tt.jackpot, result.JackpotText)
				assert.Zero(t, result.Jackpot)

				warned := logs.FilterLevelExact(zapcore.ErrorLevel).FilterMessageSnippet(tt.logged)
				assert.Equal(t, 1, warned.Len())
			})
		}
	})

	t.Run("user_agent_header", func(t *testing.T) {
		var got atomic.Value
		srv, _ := newTestServer(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
			got.Store(r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte(jackpotPage))
		})

		_, err := NewJackpotFetcher(WithUserAgent("lotterysim-test/1.0")).Fetch(context.Background(), testSource(srv.URL))
		require.NoError(t, err)
		assert.Equal(t, "lotterysim-test/1.0", got.Load())
	})

	t.Run("invalid_source", func(t *testing.T) {
		_, err := NewJackpotFetcher().Fetch(context.Background(), testSource("ftp://example.com"))
		assert.True(t, errors.Is(err, ErrInvalidDataSource))
	})

	t.Run("records_metrics", func(t *testing.T) {
		srv, _ := newTestServer(t, func(n int32, w http.ResponseWriter, _ *http.Request) {
			if n == 1 {
				_, _ = w.Write([]byte("oops"))
				return
			}
			_, _ = w.Write([]byte(jackpotPage))
		})

		metrics := NewMetrics("fetchtest")
		f := NewJackpotFetcher(WithFetcherMetrics(metrics), WithSleepFunc(recordSleep(new([]time.Duration))))
		_, err := f.Fetch(context.Background(), testSource(srv.URL))
		require.NoError(t, err)

		assert.Equal(t, 1.0, metricValue(t, metrics.fetchAttempts.WithLabelValues("test", FetchOutcomeInvalid)))
		assert.Equal(t, 1.0, metricValue(t, metrics.fetchAttempts.WithLabelValues("test", FetchOutcomeSuccess)))
	})
}

func TestDataSource_Validate(t *testing.T) {
	valid := testSource("https://www.lotteryusa.com/powerball/")
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*DataSource)
	}{
		{"relative_url", func(s *DataSource) { s.URL = "/powerball/" }},
		{"bad_scheme", func(s *DataSource) { s.URL = "file:///tmp/page.html" }},
		{"bad_jackpot_selector", func(s *DataSource) { s.JackpotSelector.Element = "" }},
		{"bad_date_selector", func(s *DataSource) { s.DrawDateSelector.ClassContains = "" }},
		{"negative_offset", func(s *DataSource) { s.MarkupOffset = -1 }},
		{"zero_scale", func(s *DataSource) { s.AmountScale = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := valid
			tt.mutate(&source)
			assert.True(t, errors.Is(source.Validate(), ErrInvalidDataSource))
		})
	}
}

func TestDefaultSources(t *testing.T) {
	sources := DefaultSources()
	for _, id := range []string{GameCash5, GameMegaMillions, GamePowerball} {
		t.Run(id, func(t *testing.T) {
			source, ok := sources[id]
			require.True(t, ok)
			assert.NoError(t, source.Validate())
			assert.Equal(t, id, source.Name)
		})
	}
	assert.Equal(t, int64(1_000), sources[GameCash5].AmountScale)
}

func TestRetryPolicy(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		p := DefaultRetryPolicy()
		require.NoError(t, p.Validate())
		assert.False(t, p.Unbounded())
		assert.Equal(t, DefaultFetchBackoff, p.Delay(1))
		assert.Equal(t, DefaultFetchBackoff, p.Delay(4))
	})

	t.Run("exponential_with_cap", func(t *testing.T) {
		p := RetryPolicy{MaxAttempts: 10, Backoff: time.Second, Multiplier: 2, MaxBackoff: 5 * time.Second}
		assert.Equal(t, time.Second, p.Delay(1))
		assert.Equal(t, 2*time.Second, p.Delay(2))
		assert.Equal(t, 4*time.Second, p.Delay(3))
		assert.Equal(t, 5*time.Second, p.Delay(4))
		assert.Equal(t, 5*time.Second, p.Delay(20))
	})

	t.Run("unbounded", func(t *testing.T) {
		assert.True(t, RetryPolicy{}.Unbounded())
	})

	tests := []struct {
		name   string
		policy RetryPolicy
	}{
		{"negative_attempts", RetryPolicy{MaxAttempts: -1}},
		{"too_many_attempts", RetryPolicy{MaxAttempts: MaxFetchAttempts + 1}},
		{"negative_backoff", RetryPolicy{MaxAttempts: 1, Backoff: -time.Second}},
		{"shrinking_multiplier", RetryPolicy{MaxAttempts: 1, Multiplier: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.policy.Validate(), ErrConfigInvalid))
		})
	}
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
