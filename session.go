package lotterysim

import (
	"context"
	"errors"
	"time"
)

// RoundRequest is what the player buys for one round.
// The multiplier choice applies to every play in the round.
type RoundRequest struct {
	QuickPicks int      `json:"quick_picks"`
	Tickets    []Ticket `json:"tickets"`
	Multiplier bool     `json:"multiplier"`
}

// Play is one scored ticket
type Play struct {
	Ticket    Ticket      `json:"ticket"`
	QuickPick bool        `json:"quick_pick"`
	Match     MatchResult `json:"match"`
	Prize     Prize       `json:"prize"`
}

// Round is the outcome of one draw and every ticket scored against it
type Round struct {
	ID                  string    `json:"id"`
	Game                string    `json:"game"`
	Draw                Draw      `json:"draw"`
	Multiplier          int       `json:"multiplier"`
	MultiplierPurchased bool      `json:"multiplier_purchased"`
	Jackpot             int64     `json:"jackpot"`
	DrawDate            string    `json:"draw_date,omitempty"`
	Plays               []Play    `json:"plays"`
	TotalWinnings       int64     `json:"total_winnings"`
	Cost                int64     `json:"cost"`
	PlayedAt            time.Time `json:"played_at"`
}

// JackpotWon reports whether the round's total winnings reached the jackpot.
// Enough smaller prizes can satisfy this without any ticket hitting the top tier;
// see HasJackpotTicket for the per-ticket check.
func (r *Round) JackpotWon() bool {
	return r.TotalWinnings >= r.Jackpot
}

// HasJackpotTicket reports whether any single ticket hit the jackpot tier
func (r *Round) HasJackpotTicket() bool {
	for _, p := range r.Plays {
		if p.Prize.IsJackpot() {
			return true
		}
	}
	return false
}

// Net is winnings minus cost
func (r *Round) Net() int64 {
	return r.TotalWinnings - r.Cost
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithRoundStore saves every played round
func WithRoundStore(store *RoundStore) SessionOption {
	return func(s *Session) { s.store = store }
}

// WithSessionMetrics records rounds
func WithSessionMetrics(m *Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithSessionLogger sets the logger
func WithSessionLogger(logger Logger) SessionOption {
	return func(s *Session) { s.logger = loggerOrSilent(logger) }
}

// Session plays rounds of one game against a single fetch result.
// A session is not safe for concurrent use.
type Session struct {
	profile *GameProfile
	fetch   *FetchResult
	engine  *DrawEngine
	store   *RoundStore
	metrics *Metrics
	logger  Logger
	now     func() time.Time
}

// NewSession fails with ErrJackpotMissing when the fetch found no jackpot.
// A missing draw date only logs a warning.
func NewSession(profile *GameProfile, fetch *FetchResult, engine *DrawEngine, opts ...SessionOption) (*Session, error) {
	s := &Session{
		profile: profile,
		fetch:   fetch,
		engine:  engine,
		logger:  NewSilentLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if profile == nil {
		return nil, ErrInvalidProfile.WithDetails("profile is nil")
	}
	if !fetch.HasJackpot() {
		s.logger.Error("Failed to fetch jackpot for %s", profile.Name)
		return nil, ErrJackpotMissing.WithDetails(profile.Name)
	}
	if !fetch.HasDrawDate() {
		s.logger.Info("Failed to fetch next draw date for %s, continuing without it", profile.Name)
	}
	if s.engine == nil {
		s.engine = NewDrawEngine(nil, s.logger)
	}
	return s, nil
}

// Profile returns the game profile
func (s *Session) Profile() *GameProfile { return s.profile }

// Fetch returns the fetch result the session was built from
func (s *Session) Fetch() *FetchResult { return s.fetch }

// Jackpot returns the session jackpot in dollars
func (s *Session) Jackpot() int64 { return s.fetch.Jackpot }

// PlayRound rolls the multiplier, draws the official numbers once and scores
// every user ticket and quick pick against them.
func (s *Session) PlayRound(ctx context.Context, req RoundRequest) (*Round, error) {
	s.logger.Debug("PlayRound called with game=%s, tickets=%d, quick_picks=%d, multiplier=%t",
		s.profile.ID, len(req.Tickets), req.QuickPicks, req.Multiplier)

	if err := ctx.Err(); err != nil {
		return nil, ErrSystemError.WithCause(err).WithOperation("PlayRound")
	}
	if err := s.validateRequest(req); err != nil {
		s.logger.Error("PlayRound validation failed: %v", err)
		return nil, err
	}

	multiplier, err := s.engine.RollMultiplier(s.profile, req.Multiplier)
	if err != nil {
		return nil, err
	}
	draw, err := s.engine.Draw(s.profile)
	if err != nil {
		return nil, err
	}

	round := &Round{
		ID:                  generateOperationID(),
		Game:                s.profile.ID,
		Draw:                draw,
		Multiplier:          multiplier,
		MultiplierPurchased: req.Multiplier && s.profile.Multiplier.Enabled(),
		Jackpot:             s.fetch.Jackpot,
		DrawDate:            s.fetch.DrawDate,
		Plays:               make([]Play, 0, len(req.Tickets)+req.QuickPicks),
		PlayedAt:            s.now(),
	}

	for _, t := range req.Tickets {
		round.add(s.profile, t, false)
	}
	for range req.QuickPicks {
		t, err := s.engine.QuickPick(s.profile)
		if err != nil {
			return nil, err
		}
		round.add(s.profile, t, true)
	}
	round.Cost = int64(len(round.Plays)) * s.profile.PlayPrice(round.MultiplierPurchased)

	s.metrics.RecordRound(round)
	s.logger.Info("Round %s for %s: %d plays, winnings=%d, cost=%d", round.ID, s.profile.ID, len(round.Plays), round.TotalWinnings, round.Cost)

	if s.store != nil {
		if _, err := s.store.Save(ctx, round); err != nil {
			// 轮次已经完成, 保存失败不影响结果
			s.logger.Error("Failed to save round %s: %v", round.ID, err)
		}
	}
	return round, nil
}

func (r *Round) add(p *GameProfile, t Ticket, quickPick bool) {
	match, prize := ScoreTicket(p, t, r.Draw, r.Jackpot, r.Multiplier)
	r.Plays = append(r.Plays, Play{Ticket: t, QuickPick: quickPick, Match: match, Prize: prize})
	r.TotalWinnings += prize.Amount
}

func (s *Session) validateRequest(req RoundRequest) error {
	if req.QuickPicks < 0 {
		return ErrInvalidTicket.WithDetailsf("quick picks cannot be negative, got %d", req.QuickPicks)
	}
	plays := len(req.Tickets) + req.QuickPicks
	if plays == 0 {
		return ErrInvalidTicket.WithDetails("a round needs at least one play")
	}
	if plays > MaxPlaysPerRound {
		return ErrInvalidTicket.WithDetailsf("at most %d plays per round, got %d", MaxPlaysPerRound, plays)
	}
	for i, t := range req.Tickets {
		if err := ValidateTicket(t, s.profile); err != nil {
			var lerr *LotteryError
			if errors.As(err, &lerr) {
				return lerr.WithDetailsf("ticket %d: %s", i+1, lerr.Details)
			}
			return err
		}
	}
	return nil
}
