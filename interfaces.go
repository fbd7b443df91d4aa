package lotterysim

import (
	"context"
	"net/http"
)

// RandomSource produces uniform integers for the draw engine.
// Implementations are not required to be safe for concurrent use.
type RandomSource interface {
	// GenerateInRange returns a uniform integer in [min, max] (inclusive)
	GenerateInRange(min, max int) (int, error)
}

// HTTPDoer is the subset of *http.Client used by the fetcher
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher retrieves the jackpot and draw date for a data source
type Fetcher interface {
	Fetch(ctx context.Context, source DataSource) (*FetchResult, error)
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}
