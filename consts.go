package lotterysim

import "time"

const (
	// DefaultMainCount is the number of main numbers drawn in every supported game
	DefaultMainCount = 5

	// DefaultFetchTimeout is the default timeout for a single HTTP round trip
	DefaultFetchTimeout = 30 * time.Second

	// DefaultFetchMaxAttempts is the default number of GET attempts before giving up
	// on a source that keeps returning malformed responses
	DefaultFetchMaxAttempts = 5

	// DefaultFetchBackoff is the delay between attempts after a malformed response
	DefaultFetchBackoff = 2 * time.Second

	// DefaultFetchBackoffMultiplier keeps the backoff fixed
	DefaultFetchBackoffMultiplier = 1.0

	// DefaultFetchMaxBackoff caps the delay when an exponential multiplier is configured
	DefaultFetchMaxBackoff = 30 * time.Second

	// MaxFetchAttempts is the largest bounded attempt count accepted by config validation
	MaxFetchAttempts = 100

	// MaxFetchBodySize limits how much of a response body is read into memory (8MB)
	MaxFetchBodySize = 8 * 1024 * 1024
)

const (
	// DefaultCircuitBreakerName is the default name for Circuit Breaker
	DefaultCircuitBreakerName = "jackpot-fetcher"

	// DefaultCircuitBreakerMaxRequests is the default max requests
	DefaultCircuitBreakerMaxRequests = 3

	// DefaultCircuitBreakerInterval is the default interval
	DefaultCircuitBreakerInterval = 60 * time.Second

	// DefaultCircuitBreakerTimeout is the default timeout
	DefaultCircuitBreakerTimeout = 30 * time.Second

	// DefaultCircuitBreakerFailureRatio is the default failure ratio
	DefaultCircuitBreakerFailureRatio = 0.6

	// DefaultCircuitBreakerMinRequests is the default min requests
	DefaultCircuitBreakerMinRequests = 3

	// DefaultCircuitBreakerOnStateChange is the default on state change
	DefaultCircuitBreakerOnStateChange = true
)

const (
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisPassword     = ""
	DefaultRedisDB           = 0
	DefaultRedisPoolSize     = 10
	DefaultRedisMinIdleConns = 2
	DefaultRedisMaxRetries   = 3
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second
	DefaultRedisPoolTimeout  = 4 * time.Second

	// DefaultRoundTTL is how long a round record stays in Redis
	DefaultRoundTTL = 24 * time.Hour

	// DefaultStoreRetryAttempts is the default number of retry attempts for Redis operations
	DefaultStoreRetryAttempts = 3

	// DefaultStoreRetryInterval is the base delay of the exponential Redis retry
	DefaultStoreRetryInterval = 100 * time.Millisecond
)

const (
	// MaxPlaysPerRound bounds user tickets plus quick picks in a single round
	MaxPlaysPerRound = 1000

	DefaultMetricsNamespace = "lotterysim"
	DefaultServerAddr       = ":8080"
	DefaultGameID           = GameMegaMillions
)

// Game identifiers, also used as config keys under "sources"
const (
	GameCash5        = "cash5"
	GameMegaMillions = "megamillions"
	GamePowerball    = "powerball"
)
