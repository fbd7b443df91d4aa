package lotterysim

import "slices"

// Draw is the official set of numbers for one round.
// Main keeps draw order; Special is 0 for games without a special pool.
type Draw struct {
	Main    []int `json:"main"`
	Special int   `json:"special,omitempty"`
}

// Ticket has the same shape as Draw and is scored against it
type Ticket struct {
	Main    []int `json:"main"`
	Special int   `json:"special,omitempty"`
}

// Sorted returns a copy of the main numbers in ascending order
func (d Draw) Sorted() []int {
	s := slices.Clone(d.Main)
	slices.Sort(s)
	return s
}

// ToTicket converts a draw into a ticket carrying the same numbers
func (d Draw) ToTicket() Ticket {
	return Ticket{Main: slices.Clone(d.Main), Special: d.Special}
}

// ValidateTicket checks the ticket against the profile ranges.
// Main numbers must be unique and within [1, MainMax]; the special number
// must be within [1, SpecialMax] for games with a special pool and 0 otherwise.
func ValidateTicket(t Ticket, p *GameProfile) error {
	if p == nil {
		return ErrInvalidProfile.WithDetails("profile is nil")
	}
	if len(t.Main) != p.MainCount {
		return ErrInvalidTicket.WithDetailsf("expected %d main numbers, got %d", p.MainCount, len(t.Main))
	}

	seen := make(map[int]struct{}, len(t.Main))
	for _, n := range t.Main {
		if n < 1 || n > p.MainMax {
			return ErrInvalidTicket.WithDetailsf("main number %d out of range [1, %d]", n, p.MainMax)
		}
		if _, dup := seen[n]; dup {
			return ErrInvalidTicket.WithDetailsf("main number %d chosen twice", n)
		}
		seen[n] = struct{}{}
	}

	if !p.HasSpecial() {
		if t.Special != 0 {
			return ErrInvalidTicket.WithDetailsf("%s has no special number", p.Name)
		}
		return nil
	}
	if t.Special < 1 || t.Special > p.SpecialMax {
		return ErrInvalidTicket.WithDetailsf("%s %d out of range [1, %d]", p.SpecialName, t.Special, p.SpecialMax)
	}
	return nil
}

// MatchResult is the outcome of comparing one ticket with a draw
type MatchResult struct {
	MainMatches  int  `json:"main_matches"`
	SpecialMatch bool `json:"special_match"`
}
