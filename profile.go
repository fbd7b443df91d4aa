package lotterysim

import (
	"slices"
	"strings"
)

// MultiplierRule describes the optional purchased multiplier.
// The zero value means the game has no multiplier.
type MultiplierRule struct {
	Name     string `json:"name"`
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Excluded []int  `json:"excluded,omitempty"`
}

// Enabled reports whether the game sells a multiplier
func (r MultiplierRule) Enabled() bool {
	return r.Max > 0
}

// Allowed returns the values the multiplier can take, ascending
func (r MultiplierRule) Allowed() []int {
	if !r.Enabled() {
		return nil
	}
	var out []int
	for v := r.Min; v <= r.Max; v++ {
		if !slices.Contains(r.Excluded, v) {
			out = append(out, v)
		}
	}
	return out
}

// GameProfile holds everything that differs between game variants.
// Profiles are built with NewGameProfile and must not be modified afterwards.
type GameProfile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MainMax     int    `json:"main_max"`
	MainCount   int    `json:"main_count"`
	SpecialMax  int    `json:"special_max,omitempty"`
	SpecialName string `json:"special_name,omitempty"`

	Multiplier MultiplierRule `json:"multiplier"`
	PayTable   PayTable       `json:"pay_table"`

	TicketPrice     int64 `json:"ticket_price"`
	MultiplierPrice int64 `json:"multiplier_price"`

	// JackpotScale converts the scraped integer to dollars
	JackpotScale int64 `json:"jackpot_scale"`
}

// NewGameProfile validates and returns the profile
func NewGameProfile(p GameProfile) (*GameProfile, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Multiplier.Excluded = slices.Clone(p.Multiplier.Excluded)
	p.PayTable = slices.Clone(p.PayTable)
	return &p, nil
}

// Validate checks ranges, the multiplier rule and pay table coverage
func (p *GameProfile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrInvalidProfile.WithDetails("profile id is required")
	}
	if p.MainCount <= 0 {
		return ErrRangeExhausted.WithDetailsf("%s: main count must be positive, got %d", p.ID, p.MainCount)
	}
	if p.MainMax < p.MainCount {
		return ErrRangeExhausted.WithDetailsf("%s: cannot draw %d unique numbers from [1, %d]", p.ID, p.MainCount, p.MainMax)
	}
	if p.SpecialMax < 0 {
		return ErrInvalidProfile.WithDetailsf("%s: special max cannot be negative", p.ID)
	}

	if p.Multiplier.Enabled() {
		if p.Multiplier.Min < 1 || p.Multiplier.Min > p.Multiplier.Max {
			return ErrInvalidProfile.WithDetailsf("%s: multiplier range [%d, %d] is invalid", p.ID, p.Multiplier.Min, p.Multiplier.Max)
		}
		if len(p.Multiplier.Allowed()) == 0 {
			return ErrRangeExhausted.WithDetailsf("%s: every multiplier value is excluded", p.ID)
		}
	}

	if p.TicketPrice < 0 || p.MultiplierPrice < 0 {
		return ErrInvalidProfile.WithDetailsf("%s: prices cannot be negative", p.ID)
	}
	if p.JackpotScale <= 0 {
		return ErrInvalidProfile.WithDetailsf("%s: jackpot scale must be positive", p.ID)
	}

	if err := p.PayTable.Validate(p.MainCount, p.HasSpecial(), p.Multiplier.Max); err != nil {
		return err
	}
	return nil
}

// HasSpecial reports whether the game draws a special number
func (p *GameProfile) HasSpecial() bool {
	return p.SpecialMax > 0
}

// Prize delegates to the pay table
func (p *GameProfile) Prize(m MatchResult, jackpot int64, multiplier int) Prize {
	return p.PayTable.Prize(m, jackpot, multiplier)
}

// PlayPrice is the cost of a single play
func (p *GameProfile) PlayPrice(withMultiplier bool) int64 {
	if withMultiplier && p.Multiplier.Enabled() {
		return p.TicketPrice + p.MultiplierPrice
	}
	return p.TicketPrice
}

// Cash5Profile is the New Jersey Cash 5 game: 5 of 1..45 with the Xtra multiplier
func Cash5Profile() *GameProfile {
	return mustProfile(GameProfile{
		ID:         GameCash5,
		Name:       "Jersey Cash 5",
		MainMax:    45,
		MainCount:  DefaultMainCount,
		Multiplier: MultiplierRule{Name: "Xtra", Min: 2, Max: 5},
		PayTable: PayTable{
			{Tier: "5", MainMatches: 5, Payout: PayoutJackpot},
			{Tier: "4", MainMatches: 4, Payout: PayoutMultiplied, Amount: 500},
			{Tier: "3", MainMatches: 3, Payout: PayoutMultiplied, Amount: 15},
			{Tier: "2", MainMatches: 2, MinMultiplier: 2, Payout: PayoutFixed, Amount: 2},
			{MainMatches: AnyMainMatches, Payout: PayoutNone},
		},
		TicketPrice:     1,
		MultiplierPrice: 1,
		JackpotScale:    1_000,
	})
}

// MegaMillionsProfile is 5 of 1..70 plus a Mega Ball of 1..25 with the Megaplier
func MegaMillionsProfile() *GameProfile {
	return mustProfile(GameProfile{
		ID:          GameMegaMillions,
		Name:        "Mega Millions",
		MainMax:     70,
		MainCount:   DefaultMainCount,
		SpecialMax:  25,
		SpecialName: "Mega Ball",
		Multiplier:  MultiplierRule{Name: "Megaplier", Min: 2, Max: 5},
		PayTable: PayTable{
			{Tier: "5+MB", MainMatches: 5, Special: SpecialMatch, Payout: PayoutJackpot},
			{Tier: "5", MainMatches: 5, Payout: PayoutMultiplied, Amount: 1_000_000},
			{Tier: "4+MB", MainMatches: 4, Special: SpecialMatch, Payout: PayoutMultiplied, Amount: 10_000},
			{Tier: "4", MainMatches: 4, Payout: PayoutMultiplied, Amount: 500},
			{Tier: "3+MB", MainMatches: 3, Special: SpecialMatch, Payout: PayoutMultiplied, Amount: 200},
			{Tier: "3", MainMatches: 3, Payout: PayoutMultiplied, Amount: 10},
			{Tier: "2+MB", MainMatches: 2, Special: SpecialMatch, Payout: PayoutMultiplied, Amount: 10},
			{Tier: "1+MB", MainMatches: 1, Special: SpecialMatch, Payout: PayoutMultiplied, Amount: 4},
			{Tier: "MB", MainMatches: 0, Special: SpecialMatch, Payout: PayoutMultiplied, Amount: 2},
			{MainMatches: AnyMainMatches, Payout: PayoutNone},
		},
		TicketPrice:     2,
		MultiplierPrice: 1,
		JackpotScale:    1_000_000,
	})
}

// PowerballProfile is 5 of 1..69 plus a Powerball of 1..26 with Power Play.
// Power Play skips 6 through 9.
func PowerballProfile() *GameProfile {
	return mustProfile(GameProfile{
		ID:          GamePowerball,
		Name:        "Powerball",
		MainMax:     69,
		MainCount:   DefaultMainCount,
		SpecialMax:  26,
		SpecialName: "Powerball",
		Multiplier:  MultiplierRule{Name: "Power Play", Min: 2, Max: 10, Excluded: []int{6, 7, 8, 9}},
		PayTable: PayTable{
			{Tier: "5+PB", MainMatches: 5, Special: SpecialMatch, Payout: PayoutJackpot},
			{Tier: "5", MainMatches: 5, MinMultiplier: 2, Payout: PayoutFixed, Amount: 2_000_000},
			{Tier: "5", MainMatches: 5, Payout: PayoutFixed, Amount: 1_000_000},
			{Tier: "4+PB", MainMatches: 4, Special: SpecialMatch, Payout: PayoutMultiplied, Amount: 50_000},
			{Tier: "4", MainMatches: 4, Payout: PayoutMultiplied, Amount: 100},
			{Tier: "3+PB", MainMatches: 3, Special: SpecialMatch, Payout: PayoutMultiplied, Amount: 100},
			{Tier: "3", MainMatches: 3, Payout: PayoutMultiplied, Amount: 7},
			{Tier: "2+PB", MainMatches: 2, Special: SpecialMatch, Payout: PayoutMultiplied, Amount: 7},
			{Tier: "1+PB", MainMatches: 1, Special: SpecialMatch, Payout: PayoutMultiplied, Amount: 4},
			{Tier: "PB", MainMatches: 0, Special: SpecialMatch, Payout: PayoutMultiplied, Amount: 4},
			{MainMatches: AnyMainMatches, Payout: PayoutNone},
		},
		TicketPrice:     2,
		MultiplierPrice: 1,
		JackpotScale:    1_000_000,
	})
}

// BuiltinProfiles returns the three supported games keyed by ID
func BuiltinProfiles() map[string]*GameProfile {
	return map[string]*GameProfile{
		GameCash5:        Cash5Profile(),
		GameMegaMillions: MegaMillionsProfile(),
		GamePowerball:    PowerballProfile(),
	}
}

func mustProfile(p GameProfile) *GameProfile {
	profile, err := NewGameProfile(p)
	if err != nil {
		panic(err)
	}
	return profile
}
