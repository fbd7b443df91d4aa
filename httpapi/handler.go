// Package httpapi exposes jackpot fetches and simulated rounds over HTTP with gin.
package httpapi

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kydenul/lotterysim"
)

// Options wires the handler to the library
type Options struct {
	Profiles map[string]*lotterysim.GameProfile
	Sources  map[string]lotterysim.DataSource
	Fetcher  lotterysim.Fetcher

	// NewRNG builds a fresh generator for every request
	NewRNG func() lotterysim.RandomSource

	Logger  lotterysim.Logger
	Metrics *lotterysim.Metrics
	Store   *lotterysim.RoundStore
}

// 历史查询默认与最大条数
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Handler serves the lottery API
type Handler struct {
	opts Options
}

// NewHandler fills in defaults for missing options
func NewHandler(opts Options) *Handler {
	if opts.Profiles == nil {
		opts.Profiles = lotterysim.BuiltinProfiles()
	}
	if opts.Sources == nil {
		opts.Sources = lotterysim.DefaultSources()
	}
	if opts.Fetcher == nil {
		opts.Fetcher = lotterysim.NewJackpotFetcher(lotterysim.WithFetcherLogger(opts.Logger))
	}
	if opts.NewRNG == nil {
		opts.NewRNG = func() lotterysim.RandomSource { return lotterysim.NewRandomGenerator() }
	}
	if opts.Logger == nil {
		opts.Logger = lotterysim.NewSilentLogger()
	}
	return &Handler{opts: opts}
}

// Register mounts the routes on the engine
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/games", h.listGames)
	r.GET("/games/:game/jackpot", h.jackpot)
	r.POST("/games/:game/rounds", h.playRound)
	if h.opts.Store != nil {
		r.GET("/games/:game/rounds", h.listRounds)
		r.GET("/games/:game/rounds/:id", h.getRound)
		r.DELETE("/games/:game/rounds/:id", h.deleteRound)
	}
	if h.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.opts.Metrics.Handler()))
	}
}

type gameInfo struct {
	ID              string                    `json:"id"`
	Name            string                    `json:"name"`
	MainMax         int                       `json:"main_max"`
	MainCount       int                       `json:"main_count"`
	SpecialMax      int                       `json:"special_max,omitempty"`
	SpecialName     string                    `json:"special_name,omitempty"`
	Multiplier      lotterysim.MultiplierRule `json:"multiplier"`
	TicketPrice     int64                     `json:"ticket_price"`
	MultiplierPrice int64                     `json:"multiplier_price"`
}

// roundRequest is the JSON body of POST /games/:game/rounds
type roundRequest struct {
	QuickPicks int                 `json:"quick_picks"`
	Tickets    []lotterysim.Ticket `json:"tickets"`
	Multiplier bool                `json:"multiplier"`
}

type roundResponse struct {
	*lotterysim.Round
	JackpotWon       bool  `json:"jackpot_won"`
	HasJackpotTicket bool  `json:"has_jackpot_ticket"`
	Net              int64 `json:"net"`
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"games":   len(h.opts.Profiles),
		"metrics": h.opts.Metrics.Snapshot(),
	})
}

func (h *Handler) listGames(c *gin.Context) {
	games := make([]gameInfo, 0, len(h.opts.Profiles))
	for _, p := range h.opts.Profiles {
		games = append(games, gameInfo{
			ID:              p.ID,
			Name:            p.Name,
			MainMax:         p.MainMax,
			MainCount:       p.MainCount,
			SpecialMax:      p.SpecialMax,
			SpecialName:     p.SpecialName,
			Multiplier:      p.Multiplier,
			TicketPrice:     p.TicketPrice,
			MultiplierPrice: p.MultiplierPrice,
		})
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	c.JSON(http.StatusOK, gin.H{"games": games})
}

func (h *Handler) jackpot(c *gin.Context) {
	_, source, ok := h.lookup(c)
	if !ok {
		return
	}

	result, err := h.opts.Fetcher.Fetch(c.Request.Context(), source)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) playRound(c *gin.Context) {
	profile, source, ok := h.lookup(c)
	if !ok {
		return
	}

	var req roundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	fetch, err := h.opts.Fetcher.Fetch(ctx, source)
	if err != nil {
		h.fail(c, err)
		return
	}

	// Each request gets its own generator, engine and fetch result.
	engine := lotterysim.NewDrawEngine(h.opts.NewRNG(), h.opts.Logger)
	opts := []lotterysim.SessionOption{
		lotterysim.WithSessionLogger(h.opts.Logger),
		lotterysim.WithSessionMetrics(h.opts.Metrics),
	}
	if h.opts.Store != nil {
		opts = append(opts, lotterysim.WithRoundStore(h.opts.Store))
	}
	session, err := lotterysim.NewSession(profile, fetch, engine, opts...)
	if err != nil {
		h.fail(c, err)
		return
	}

	round, err := session.PlayRound(ctx, lotterysim.RoundRequest{
		QuickPicks: req.QuickPicks,
		Tickets:    req.Tickets,
		Multiplier: req.Multiplier,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, roundResponse{
		Round:            round,
		JackpotWon:       round.JackpotWon(),
		HasJackpotTicket: round.HasJackpotTicket(),
		Net:              round.Net(),
	})
}

// listRounds returns stored rounds for the game, newest first
func (h *Handler) listRounds(c *gin.Context) {
	profile, _, ok := h.lookup(c)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and " + strconv.Itoa(maxHistoryLimit)})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	keys, err := h.opts.Store.List(ctx, profile.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	rounds := make([]*lotterysim.Round, 0, min(limit, len(keys)))
	for i := len(keys) - 1; i >= 0 && len(rounds) < limit; i-- {
		round, err := h.opts.Store.Load(ctx, keys[i])
		if err != nil {
			h.fail(c, err)
			return
		}
		// 键可能在 List 与 Load 之间过期
		if round != nil {
			rounds = append(rounds, round)
		}
	}
	c.JSON(http.StatusOK, gin.H{"rounds": rounds, "total": len(keys)})
}

func (h *Handler) getRound(c *gin.Context) {
	profile, _, ok := h.lookup(c)
	if !ok {
		return
	}

	round, err := h.opts.Store.Load(c.Request.Context(), lotterysim.RoundKey(profile.ID, c.Param("id")))
	if err != nil {
		h.fail(c, err)
		return
	}
	if round == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "round not found"})
		return
	}
	c.JSON(http.StatusOK, round)
}

func (h *Handler) deleteRound(c *gin.Context) {
	profile, _, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := h.opts.Store.Delete(c.Request.Context(), lotterysim.RoundKey(profile.ID, c.Param("id"))); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) lookup(c *gin.Context) (*lotterysim.GameProfile, lotterysim.DataSource, bool) {
	id := c.Param("game")
	profile, ok := h.opts.Profiles[id]
	if !ok {
		h.fail(c, lotterysim.ErrUnknownGame.WithDetails(id))
		return nil, lotterysim.DataSource{}, false
	}
	source, ok := h.opts.Sources[id]
	if !ok {
		h.fail(c, lotterysim.ErrUnknownGame.WithDetailsf("no data source for %s", id))
		return nil, lotterysim.DataSource{}, false
	}
	return profile, source, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.opts.Logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}

	body := gin.H{"error": err.Error()}
	var lerr *lotterysim.LotteryError
	if errors.As(err, &lerr) {
		body["code"] = lerr.Code
	}
	c.JSON(status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lotterysim.ErrUnknownGame):
		return http.StatusNotFound
	case errors.Is(err, lotterysim.ErrInvalidTicket):
		return http.StatusBadRequest
	case errors.Is(err, lotterysim.ErrFetchCancelled):
		return http.StatusGatewayTimeout
	case errors.Is(err, lotterysim.ErrCircuitBreakerOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, lotterysim.ErrFetchTransport),
		errors.Is(err, lotterysim.ErrFetchValidation),
		errors.Is(err, lotterysim.ErrFetchAttemptsExhausted),
		errors.Is(err, lotterysim.ErrJackpotMissing):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
