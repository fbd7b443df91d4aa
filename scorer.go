package lotterysim

// Score compares a ticket with the official draw.
//
// Main matches are the size of the intersection of the two main sets, so the
// order of either side does not matter. The special numbers are compared only
// with each other, and only when the draw has one.
func Score(ticket Ticket, draw Draw) MatchResult {
	drawn := make(map[int]struct{}, len(draw.Main))
	for _, n := range draw.Main {
		drawn[n] = struct{}{}
	}

	var result MatchResult
	counted := make(map[int]struct{}, len(ticket.Main))
	for _, n := range ticket.Main {
		if _, dup := counted[n]; dup {
			continue
		}
		counted[n] = struct{}{}
		if _, ok := drawn[n]; ok {
			result.MainMatches++
		}
	}

	result.SpecialMatch = draw.Special != 0 && ticket.Special == draw.Special
	return result
}

// ScoreTicket scores a ticket and looks up its prize in the profile pay table
func ScoreTicket(p *GameProfile, ticket Ticket, draw Draw, jackpot int64, multiplier int) (MatchResult, Prize) {
	match := Score(ticket, draw)
	return match, p.Prize(match, jackpot, multiplier)
}
