package lotterysim

import (
	"slices"
)

// DrawEngine produces draws, quick picks and multiplier rolls from an
// injected RandomSource. An engine owns its generator and is not safe for
// concurrent use; give each session or request its own engine.
type DrawEngine struct {
	rng    RandomSource
	logger Logger
}

// NewDrawEngine creates an engine. A nil rng falls back to NewRandomGenerator.
func NewDrawEngine(rng RandomSource, logger Logger) *DrawEngine {
	if rng == nil {
		rng = NewRandomGenerator()
	}
	return &DrawEngine{rng: rng, logger: loggerOrSilent(logger)}
}

// DrawMain returns count unique numbers from [1, max] in draw order.
//
// Values are sampled uniformly and accepted only if not already chosen.
// Parameters that cannot produce count unique values fail fast with
// ErrRangeExhausted instead of looping forever.
func (e *DrawEngine) DrawMain(max, count int) ([]int, error) {
	e.logger.Debug("DrawMain called with max=%d, count=%d", max, count)

	if count <= 0 || max < count {
		e.logger.Error("DrawMain cannot draw %d unique numbers from [1, %d]", count, max)
		return nil, ErrRangeExhausted.WithDetailsf("cannot draw %d unique numbers from [1, %d]", count, max)
	}

	chosen := make(map[int]struct{}, count)
	numbers := make([]int, 0, count)
	for len(numbers) < count {
		n, err := e.rng.GenerateInRange(1, max)
		if err != nil {
			e.logger.Error("DrawMain random generation failed: %v", err)
			return nil, err
		}
		if _, dup := chosen[n]; dup {
			continue
		}
		chosen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

// DrawSpecial returns one independent sample from [1, max]
func (e *DrawEngine) DrawSpecial(max int) (int, error) {
	if max < 1 {
		return 0, ErrRangeExhausted.WithDetailsf("special range [1, %d] is empty", max)
	}
	return e.rng.GenerateInRange(1, max)
}

// DrawMultiplier samples [lo, hi] and rejects any value in excluded
func (e *DrawEngine) DrawMultiplier(lo, hi int, excluded []int) (int, error) {
	if lo > hi {
		return 0, ErrInvalidRange.WithDetailsf("multiplier range [%d, %d]", lo, hi)
	}

	allowed := false
	for v := lo; v <= hi; v++ {
		if !slices.Contains(excluded, v) {
			allowed = true
			break
		}
	}
	if !allowed {
		return 0, ErrRangeExhausted.WithDetailsf("every multiplier in [%d, %d] is excluded", lo, hi)
	}

	for {
		v, err := e.rng.GenerateInRange(lo, hi)
		if err != nil {
			return 0, err
		}
		if !slices.Contains(excluded, v) {
			return v, nil
		}
	}
}

// Draw produces the official numbers for one round of the game
func (e *DrawEngine) Draw(p *GameProfile) (Draw, error) {
	main, err := e.DrawMain(p.MainMax, p.MainCount)
	if err != nil {
		return Draw{}, err
	}

	d := Draw{Main: main}
	if p.HasSpecial() {
		if d.Special, err = e.DrawSpecial(p.SpecialMax); err != nil {
			return Draw{}, err
		}
	}
	return d, nil
}

// QuickPick generates a machine ticket for the game
func (e *DrawEngine) QuickPick(p *GameProfile) (Ticket, error) {
	d, err := e.Draw(p)
	if err != nil {
		return Ticket{}, err
	}
	return Ticket(d), nil
}

// RollMultiplier returns the round multiplier, 1 when it was not purchased
// or the game has none
func (e *DrawEngine) RollMultiplier(p *GameProfile, purchased bool) (int, error) {
	if !purchased || !p.Multiplier.Enabled() {
		return 1, nil
	}
	return e.DrawMultiplier(p.Multiplier.Min, p.Multiplier.Max, p.Multiplier.Excluded)
}
