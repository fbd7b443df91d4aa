package lotterysim

import "fmt"

// SpecialRequirement constrains the special-number match of a pay rule
type SpecialRequirement int

const (
	// SpecialAny ignores the special number
	SpecialAny SpecialRequirement = iota
	// SpecialMatch requires the special number to match
	SpecialMatch
	// SpecialMiss requires the special number not to match
	SpecialMiss
)

// PayoutKind says how a pay rule computes its amount
type PayoutKind int

const (
	// PayoutNone means no prize
	PayoutNone PayoutKind = iota
	// PayoutJackpot pays the session jackpot, never multiplied
	PayoutJackpot
	// PayoutFixed pays Amount regardless of the multiplier
	PayoutFixed
	// PayoutMultiplied pays Amount × multiplier
	PayoutMultiplied
)

func (k PayoutKind) String() string {
	switch k {
	case PayoutNone:
		return "none"
	case PayoutJackpot:
		return "jackpot"
	case PayoutFixed:
		return "fixed"
	case PayoutMultiplied:
		return "multiplied"
	default:
		return fmt.Sprintf("PayoutKind(%d)", int(k))
	}
}

// AnyMainMatches makes a rule match every main-match count
const AnyMainMatches = -1

// PayRule is one row of a pay table
type PayRule struct {
	Tier          string             `json:"tier" mapstructure:"tier"`
	MainMatches   int                `json:"main_matches" mapstructure:"main_matches"`
	Special       SpecialRequirement `json:"special" mapstructure:"special"`
	MinMultiplier int                `json:"min_multiplier,omitempty" mapstructure:"min_multiplier"`
	Payout        PayoutKind         `json:"payout" mapstructure:"payout"`
	Amount        int64              `json:"amount,omitempty" mapstructure:"amount"`
}

// Matches reports whether the rule applies to the match result and multiplier
func (r PayRule) Matches(m MatchResult, multiplier int) bool {
	if r.MainMatches != AnyMainMatches && r.MainMatches != m.MainMatches {
		return false
	}
	switch r.Special {
	case SpecialMatch:
		if !m.SpecialMatch {
			return false
		}
	case SpecialMiss:
		if m.SpecialMatch {
			return false
		}
	}
	return multiplier >= r.MinMultiplier
}

// Prize is the amount a ticket wins
type Prize struct {
	Amount int64      `json:"amount"`
	Tier   string     `json:"tier,omitempty"`
	Payout PayoutKind `json:"payout"`
}

// IsWinner reports whether a paying tier was hit; a tier paying $0 still counts
func (p Prize) IsWinner() bool {
	return p.Payout != PayoutNone
}

// IsJackpot reports whether the jackpot tier was hit
func (p Prize) IsJackpot() bool {
	return p.Payout == PayoutJackpot
}

// PayTable is an ordered list of pay rules; the first matching rule wins
type PayTable []PayRule

// Prize returns the prize for the match result. A multiplier below 1 is
// treated as 1. When no rule matches the result is a no-prize value.
func (t PayTable) Prize(m MatchResult, jackpot int64, multiplier int) Prize {
	if multiplier < 1 {
		multiplier = 1
	}

	for _, r := range t {
		if !r.Matches(m, multiplier) {
			continue
		}
		p := Prize{Tier: r.Tier, Payout: r.Payout}
		switch r.Payout {
		case PayoutJackpot:
			p.Amount = jackpot
		case PayoutFixed:
			p.Amount = r.Amount
		case PayoutMultiplied:
			p.Amount = r.Amount * int64(multiplier)
		}
		return p
	}
	return Prize{Payout: PayoutNone}
}

// Validate checks the rules and that every combination of main matches,
// special match and multiplier in the given bounds hits some rule.
func (t PayTable) Validate(mainCount int, hasSpecial bool, multiplierMax int) error {
	if len(t) == 0 {
		return ErrInvalidProfile.WithDetails("pay table is empty")
	}
	for i, r := range t {
		if r.MainMatches != AnyMainMatches && (r.MainMatches < 0 || r.MainMatches > mainCount) {
			return ErrInvalidProfile.WithDetailsf("rule %d: main matches %d out of range [0, %d]", i, r.MainMatches, mainCount)
		}
		if r.Special < SpecialAny || r.Special > SpecialMiss {
			return ErrInvalidProfile.WithDetailsf("rule %d: unknown special requirement %d", i, r.Special)
		}
		if r.Payout < PayoutNone || r.Payout > PayoutMultiplied {
			return ErrInvalidProfile.WithDetailsf("rule %d: unknown payout kind %d", i, r.Payout)
		}
		if r.Amount < 0 {
			return ErrInvalidProfile.WithDetailsf("rule %d: negative amount %d", i, r.Amount)
		}
	}

	specials := []bool{false}
	if hasSpecial {
		specials = append(specials, true)
	}
	multipliers := []int{1}
	if multiplierMax > 1 {
		multipliers = append(multipliers, multiplierMax)
	}

	for matches := 0; matches <= mainCount; matches++ {
		for _, special := range specials {
			for _, mult := range multipliers {
				if !t.covers(MatchResult{MainMatches: matches, SpecialMatch: special}, mult) {
					return ErrInvalidProfile.WithDetailsf(
						"pay table does not cover %d main matches (special=%t, multiplier=%d)", matches, special, mult)
				}
			}
		}
	}
	return nil
}

func (t PayTable) covers(m MatchResult, multiplier int) bool {
	for _, r := range t {
		if r.Matches(m, multiplier) {
			return true
		}
	}
	return false
}
