package lotterysim

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// RoundKeyPrefix is the prefix for Redis round history keys
	RoundKeyPrefix = "lotterysim:round:"

	// OperationIDLength is the length of the operation ID in bytes
	OperationIDLength = 8

	// MaxSerializationSize is the maximum allowed size for a serialized round (10MB)
	MaxSerializationSize = 10 * 1024 * 1024
)

// RoundStore keeps a history of played rounds in Redis as JSON with a TTL
type RoundStore struct {
	redisClient    *redis.Client
	logger         Logger
	ttl            time.Duration
	retryAttempts  int
	retryBaseDelay time.Duration
}

// RoundStoreOptions tunes the store; zero values fall back to the defaults
type RoundStoreOptions struct {
	TTL            time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// NewRoundStore creates a round store
func NewRoundStore(redisClient *redis.Client, logger Logger, opts RoundStoreOptions) *RoundStore {
	s := &RoundStore{
		redisClient:    redisClient,
		logger:         loggerOrSilent(logger),
		ttl:            opts.TTL,
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultRoundTTL
	}
	if s.retryAttempts <= 0 {
		s.retryAttempts = DefaultStoreRetryAttempts
	}
	if s.retryBaseDelay <= 0 {
		s.retryBaseDelay = DefaultStoreRetryInterval
	}
	return s
}

// Save stores the round and returns its key.
// A round without an ID gets a fresh operation ID.
func (s *RoundStore) Save(ctx context.Context, round *Round) (string, error) {
	if round == nil || round.Game == "" {
		return "", ErrStateSaveFailure.WithDetails("round and game are required")
	}
	if round.ID == "" {
		round.ID = generateOperationID()
	}

	key := RoundKey(round.Game, round.ID)
	s.logger.Debug("Saving round to Redis: key=%s, plays=%d, ttl=%v", key, len(round.Plays), s.ttl)

	data, err := serializeRound(round)
	if err != nil {
		s.logger.Error("Failed to serialize round for key=%s: %v", key, err)
		return "", err
	}

	err = s.executeWithRetry(ctx, fmt.Sprintf("save[%s]", key), func() error {
		return s.redisClient.Set(ctx, key, data, s.ttl).Err()
	})
	if err != nil {
		s.logger.Error("Failed to save round to Redis after retries: key=%s, size=%d bytes, error=%v", key, len(data), err)
		return "", ErrStateSaveFailure.WithCause(err).WithDetails(key)
	}

	s.logger.Debug("Successfully saved round: key=%s, size=%d bytes", key, len(data))
	return key, nil
}

// Load returns the round stored under key, or nil when it does not exist
func (s *RoundStore) Load(ctx context.Context, key string) (*Round, error) {
	if _, _, err := parseRoundKey(key); err != nil {
		return nil, ErrStateLoadFailure.WithCause(err)
	}

	var data []byte
	err := s.executeWithRetry(ctx, fmt.Sprintf("load[%s]", key), func() error {
		var getErr error
		data, getErr = s.redisClient.Get(ctx, key).Bytes()
		if errors.Is(getErr, redis.Nil) {
			// Key doesn't exist - this is not an error condition, don't retry
			data = nil
			return nil
		}
		return getErr
	})
	if err != nil {
		s.logger.Error("Failed to load round from Redis after retries: key=%s, error=%v", key, err)
		return nil, ErrStateLoadFailure.WithCause(err).WithDetails(key)
	}
	if len(data) == 0 {
		s.logger.Debug("No saved round found: key=%s", key)
		return nil, nil
	}

	return deserializeRound(data)
}

// List returns the keys of all stored rounds for a game, sorted oldest first
func (s *RoundStore) List(ctx context.Context, game string) ([]string, error) {
	if game == "" {
		return nil, ErrStateLoadFailure.WithDetails("game is required")
	}

	pattern := fmt.Sprintf("%s%s:*", RoundKeyPrefix, game)
	var keys []string
	err := s.executeWithRetry(ctx, "keys", func() error {
		var keysErr error
		keys, keysErr = s.redisClient.Keys(ctx, pattern).Result()
		return keysErr
	})
	if err != nil {
		s.logger.Error("Failed to search for round keys after retries: pattern=%s, error=%v", pattern, err)
		return nil, ErrStateLoadFailure.WithCause(err).WithDetails(pattern)
	}

	// operation IDs start with a timestamp, so lexical order is time order
	sort.Strings(keys)
	s.logger.Debug("Found %d round keys for game=%s", len(keys), game)
	return keys, nil
}

// Delete removes a stored round; deleting a missing key is not an error
func (s *RoundStore) Delete(ctx context.Context, key string) error {
	if _, _, err := parseRoundKey(key); err != nil {
		return ErrStateSaveFailure.WithCause(err)
	}

	var deleted int64
	err := s.executeWithRetry(ctx, fmt.Sprintf("delete[%s]", key), func() error {
		var delErr error
		deleted, delErr = s.redisClient.Del(ctx, key).Result()
		return delErr
	})
	if err != nil {
		s.logger.Error("Failed to delete round from Redis after retries: key=%s, error=%v", key, err)
		return ErrStateSaveFailure.WithCause(err).WithDetails(key)
	}

	if deleted == 0 {
		s.logger.Debug("Round key did not exist: key=%s", key)
	}
	return nil
}

// executeWithRetry executes a Redis operation with retry logic using exponential backoff
func (s *RoundStore) executeWithRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	startTime := time.Now()

	for attempt := 0; attempt <= s.retryAttempts; attempt++ {
		if attempt > 0 {
			// baseDelay * 2^(attempt-1), capped at 5s
			delay := time.Duration(1<<(attempt-1)) * s.retryBaseDelay
			if delay > 5*time.Second {
				delay = 5 * time.Second
			}

			s.logger.Debug("Retrying %s operation (attempt %d/%d) after %v", operation, attempt, s.retryAttempts, delay)
			if err := sleepContext(ctx, delay); err != nil {
				return fmt.Errorf("context cancelled during retry for %s operation after %v: %w",
					operation, time.Since(startTime), err)
			}
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				s.logger.Info("Successfully completed %s operation after %d retries", operation, attempt)
			}
			return nil
		}

		lastErr = err
		if !isRetriableRedisError(err) {
			s.logger.Debug("Non-retriable error for %s operation (attempt %d): %v", operation, attempt+1, err)
			break
		}
	}

	return fmt.Errorf("%s operation failed after %v: %w", operation, time.Since(startTime), lastErr)
}

// isRetriableRedisError checks if a Redis error is retriable
func isRetriableRedisError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retriableErrors := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"network is unreachable",
		"server closed",
		"broken pipe",
		"i/o timeout",
		"dial tcp",
		"read tcp",
		"write tcp",
		"no route to host",
		"redis: connection pool timeout",
		"loading",
		"tryagain",
	}
	for _, retriableErr := range retriableErrors {
		if strings.Contains(errStr, retriableErr) {
			return true
		}
	}
	return false
}

func serializeRound(round *Round) ([]byte, error) {
	data, err := json.Marshal(round)
	if err != nil {
		return nil, ErrSerializationFailed.WithCause(err)
	}
	if len(data) > MaxSerializationSize {
		return nil, ErrSerializationFailed.WithDetailsf("serialized round size (%d bytes) exceeds maximum allowed size (%d bytes)",
			len(data), MaxSerializationSize)
	}
	return data, nil
}

func deserializeRound(data []byte) (*Round, error) {
	if len(data) > MaxSerializationSize {
		return nil, ErrDeserializationFailed.WithDetailsf("round size (%d bytes) exceeds maximum allowed size", len(data))
	}

	var round Round
	if err := json.Unmarshal(data, &round); err != nil {
		return nil, ErrDeserializationFailed.WithCause(err)
	}
	if round.ID == "" || round.Game == "" || len(round.Draw.Main) == 0 {
		return nil, ErrDeserializationFailed.WithDetails("round record is incomplete")
	}
	return &round, nil
}

// generateOperationID generates a unique operation ID using timestamp and random bytes
func generateOperationID() string {
	// Use current timestamp as prefix for time-based ordering
	timestamp := time.Now().Format("20060102_150405")

	randomBytes := make([]byte, OperationIDLength)
	if _, err := rand.Read(randomBytes); err != nil {
		// Fallback to timestamp-based ID if random generation fails
		return fmt.Sprintf("%s_%d", timestamp, time.Now().UnixNano()%1000000)
	}
	return fmt.Sprintf("%s_%s", timestamp, hex.EncodeToString(randomBytes))
}

// RoundKey returns the Redis key of a stored round
func RoundKey(game, operationID string) string {
	return fmt.Sprintf("%s%s:%s", RoundKeyPrefix, game, operationID)
}

// parseRoundKey parses a round key to extract the game and operation ID
func parseRoundKey(key string) (game string, operationID string, err error) {
	if !strings.HasPrefix(key, RoundKeyPrefix) {
		return "", "", fmt.Errorf("invalid round key format: missing prefix")
	}

	rest := strings.TrimPrefix(key, RoundKeyPrefix)
	idx := strings.LastIndex(rest, ":")
	if idx == -1 {
		return "", "", fmt.Errorf("invalid round key format: missing operation ID separator")
	}

	game, operationID = rest[:idx], rest[idx+1:]
	if game == "" {
		return "", "", fmt.Errorf("invalid round key format: empty game")
	}
	if operationID == "" {
		return "", "", fmt.Errorf("invalid round key format: empty operation ID")
	}
	return game, operationID, nil
}
