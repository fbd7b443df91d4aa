package lotterysim

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DataSource describes where and how to scrape one game's jackpot page
type DataSource struct {
	Name             string   `json:"name" mapstructure:"name"`
	URL              string   `json:"url" mapstructure:"url"`
	JackpotSelector  Selector `json:"jackpot_selector" mapstructure:"jackpot_selector"`
	DrawDateSelector Selector `json:"draw_date_selector" mapstructure:"draw_date_selector"`

	// MarkupOffset is the byte index that must hold '<' for the body to count as markup
	MarkupOffset int `json:"markup_offset" mapstructure:"markup_offset"`

	// AmountScale multiplies the scraped integer, e.g. 1_000_000 for "$162 Million"
	AmountScale int64 `json:"amount_scale" mapstructure:"amount_scale"`
}

// Validate checks the URL, both selectors, the offset and the scale
func (s DataSource) Validate() error {
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidDataSource.WithDetailsf("%s: url %q must be an absolute http(s) url", s.Name, s.URL)
	}
	if err := s.JackpotSelector.Validate(); err != nil {
		return ErrInvalidDataSource.WithCause(err).WithDetailsf("%s: jackpot selector", s.Name)
	}
	if err := s.DrawDateSelector.Validate(); err != nil {
		return ErrInvalidDataSource.WithCause(err).WithDetailsf("%s: draw date selector", s.Name)
	}
	if s.MarkupOffset < 0 {
		return ErrInvalidDataSource.WithDetailsf("%s: markup offset cannot be negative", s.Name)
	}
	if s.AmountScale <= 0 {
		return ErrInvalidDataSource.WithDetailsf("%s: amount scale must be positive", s.Name)
	}
	return nil
}

var (
	lotteryUSAJackpot  = Selector{Element: "dd", ClassContains: "c-next-draw-card__prize-value"}
	lotteryUSADrawDate = Selector{Element: "time", ClassContains: "c-next-draw-card__date"}
)

// DefaultSources returns the lotteryusa.com pages for the built-in games
func DefaultSources() map[string]DataSource {
	return map[string]DataSource{
		GameCash5: {
			Name:             GameCash5,
			URL:              "https://www.lotteryusa.com/new-jersey/cash-5/",
			JackpotSelector:  lotteryUSAJackpot,
			DrawDateSelector: lotteryUSADrawDate,
			AmountScale:      1_000,
		},
		GameMegaMillions: {
			Name:             GameMegaMillions,
			URL:              "https://www.lotteryusa.com/mega-millions/",
			JackpotSelector:  lotteryUSAJackpot,
			DrawDateSelector: lotteryUSADrawDate,
			AmountScale:      1_000_000,
		},
		GamePowerball: {
			Name:             GamePowerball,
			URL:              "https://www.lotteryusa.com/powerball/",
			JackpotSelector:  lotteryUSAJackpot,
			DrawDateSelector: lotteryUSADrawDate,
			AmountScale:      1_000_000,
		},
	}
}

// FetchResult is the structured outcome of one page fetch
type FetchResult struct {
	Source       string    `json:"source"`
	JackpotText  string    `json:"jackpot_text"`
	Jackpot      int64     `json:"jackpot"`
	DrawDateText string    `json:"draw_date_text"`
	DrawDate     string    `json:"draw_date"`
	Attempts     int       `json:"attempts"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// HasJackpot reports whether the jackpot node was found
func (r *FetchResult) HasJackpot() bool {
	return r != nil && strings.TrimSpace(r.JackpotText) != ""
}

// HasDrawDate reports whether the draw date node was found
func (r *FetchResult) HasDrawDate() bool {
	return r != nil && r.DrawDate != ""
}

// FetcherOption configures a JackpotFetcher
type FetcherOption func(*JackpotFetcher)

// WithHTTPClient sets the HTTP doer, e.g. a BreakerDoer
func WithHTTPClient(client HTTPDoer) FetcherOption {
	return func(f *JackpotFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithRetryPolicy sets the validation retry policy
func WithRetryPolicy(policy RetryPolicy) FetcherOption {
	return func(f *JackpotFetcher) { f.policy = policy }
}

// WithFetcherLogger sets the logger
func WithFetcherLogger(logger Logger) FetcherOption {
	return func(f *JackpotFetcher) { f.logger = loggerOrSilent(logger) }
}

// WithFetcherMetrics records attempts and durations
func WithFetcherMetrics(m *Metrics) FetcherOption {
	return func(f *JackpotFetcher) { f.metrics = m }
}

// WithUserAgent sets the User-Agent header of every request
func WithUserAgent(ua string) FetcherOption {
	return func(f *JackpotFetcher) { f.userAgent = ua }
}

// WithSleepFunc replaces the backoff sleep, used by tests
func WithSleepFunc(sleep SleepFunc) FetcherOption {
	return func(f *JackpotFetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// JackpotFetcher downloads a source page, retries malformed responses and
// extracts the jackpot and next draw date. It holds no per-fetch state and
// can be shared between goroutines.
type JackpotFetcher struct {
	client    HTTPDoer
	policy    RetryPolicy
	logger    Logger
	metrics   *Metrics
	userAgent string
	sleep     SleepFunc
	now       func() time.Time
}

// NewJackpotFetcher creates a fetcher with DefaultRetryPolicy and a 30s HTTP client
func NewJackpotFetcher(opts ...FetcherOption) *JackpotFetcher {
	f := &JackpotFetcher{
		client: &http.Client{Timeout: DefaultFetchTimeout},
		policy: DefaultRetryPolicy(),
		logger: NewSilentLogger(),
		sleep:  sleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs the GET, validation and extraction for the source.
//
// Transport failures are returned at once as ErrFetchTransport. Responses that
// are not markup are discarded and retried after the policy backoff until the
// policy gives up with ErrFetchAttemptsExhausted. Context cancellation aborts
// both the request and the backoff with ErrFetchCancelled.
func (f *JackpotFetcher) Fetch(ctx context.Context, source DataSource) (*FetchResult, error) {
	f.logger.Debug("Fetch called with source=%s, url=%s", source.Name, source.URL)

	if err := source.Validate(); err != nil {
		f.logger.Error("Fetch validation failed: %v", err)
		return nil, err
	}

	start := f.now()
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, f.fail(source, start, ErrFetchCancelled.WithCause(err).WithDetailsf("%s: before attempt %d", source.Name, attempt))
		}

		body, err := f.get(ctx, source)
		if err == nil {
			f.metrics.IncFetchAttempt(source.Name, FetchOutcomeSuccess)
			result, err := f.extract(body, source, attempt)
			if err != nil {
				return nil, f.fail(source, start, err)
			}
			f.metrics.ObserveFetch(source.Name, FetchOutcomeSuccess, f.now().Sub(start))
			return result, nil
		}

		if !errors.Is(err, ErrFetchValidation) {
			return nil, f.fail(source, start, err)
		}

		f.metrics.IncFetchAttempt(source.Name, FetchOutcomeInvalid)
		lastErr = err
		if !f.policy.Unbounded() && attempt >= f.policy.MaxAttempts {
			f.logger.Error("Fetch %s gave up after %d attempts: %v", source.Name, attempt, lastErr)
			return nil, f.fail(source, start, ErrFetchAttemptsExhausted.WithCause(lastErr).WithDetailsf("%s: %d attempts", source.Name, attempt))
		}

		delay := f.policy.Delay(attempt)
		f.logger.Info("Invalid response from %s, retrying in %v (attempt %d)", source.Name, delay, attempt)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, f.fail(source, start, ErrFetchCancelled.WithCause(err).WithDetailsf("%s: during backoff", source.Name))
		}
	}
}

func (f *JackpotFetcher) fail(source DataSource, start time.Time, err *LotteryError) error {
	outcome := FetchOutcomeError
	switch {
	case errors.Is(err, ErrFetchTransport):
		outcome = FetchOutcomeTransport
	case errors.Is(err, ErrFetchCancelled):
		outcome = FetchOutcomeCancelled
	case errors.Is(err, ErrFetchAttemptsExhausted):
		outcome = FetchOutcomeExhausted
	}
	if outcome == FetchOutcomeTransport || outcome == FetchOutcomeCancelled {
		f.metrics.IncFetchAttempt(source.Name, outcome)
	}
	f.metrics.ObserveFetch(source.Name, outcome, f.now().Sub(start))
	return err.WithOperation("Fetch")
}

// get performs one attempt and returns the body only when it looks like markup
func (f *JackpotFetcher) get(ctx context.Context, source DataSource) ([]byte, *LotteryError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, ErrFetchTransport.WithCause(err).WithDetails(source.Name)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ErrFetchCancelled.WithCause(ctxErr).WithDetails(source.Name)
		}
		f.logger.Error("Fetch %s transport failure: %v", source.Name, err)
		return nil, ErrFetchTransport.WithCause(err).WithDetails(source.Name)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchBodySize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ErrFetchCancelled.WithCause(ctxErr).WithDetails(source.Name)
		}
		return nil, ErrFetchTransport.WithCause(err).WithDetailsf("%s: reading body", source.Name)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ErrFetchValidation.WithDetailsf("%s: unexpected status %d", source.Name, resp.StatusCode)
	}
	if len(body) <= source.MarkupOffset || body[source.MarkupOffset] != '<' {
		return nil, ErrFetchValidation.WithDetailsf("%s: body does not start with markup at offset %d", source.Name, source.MarkupOffset)
	}
	return body, nil
}

func (f *JackpotFetcher) extract(body []byte, source DataSource, attempts int) (*FetchResult, *LotteryError) {
	doc, err := parseMarkup(body)
	if err != nil {
		return nil, err.(*LotteryError)
	}

	// Selectors were validated with the source; Compile cannot fail here.
	jackpotMatcher, _ := source.JackpotSelector.Compile()
	dateMatcher, _ := source.DrawDateSelector.Compile()

	result := &FetchResult{
		Source:    source.Name,
		Attempts:  attempts,
		FetchedAt: f.now(),
	}

	if text, found, _ := extractWith(doc, jackpotMatcher); found {
		result.JackpotText = text
		result.Jackpot = f.scaleJackpot(source, text)
	} else {
		f.logger.Error("No matching element found for %s jackpot (%s)", source.Name, source.JackpotSelector)
	}

	if text, found, _ := extractWith(doc, dateMatcher); found {
		result.DrawDateText = text
		result.DrawDate = NormalizeText(text)
	} else {
		f.logger.Info("No matching element found for %s draw date (%s), continuing without it", source.Name, source.DrawDateSelector)
	}

	f.logger.Debug("Fetched %s after %d attempts: jackpot=%d, draw date=%q", source.Name, attempts, result.Jackpot, result.DrawDate)
	return result, nil
}

// scaleJackpot applies AmountScale to the scraped integer. Text without digits
// and products that overflow int64 both yield 0.
func (f *JackpotFetcher) scaleJackpot(source DataSource, text string) int64 {
	n := ExtractLeadingInteger(text)
	switch {
	case n == 0:
		f.logger.Error("Jackpot text %q for %s has no amount, using 0", NormalizeText(text), source.Name)
		return 0
	case n > math.MaxInt64/source.AmountScale:
		f.logger.Error("Jackpot %d x %d for %s overflows, using 0", n, source.AmountScale, source.Name)
		return 0
	}
	return n * source.AmountScale
}
