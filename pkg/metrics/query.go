package metrics

// Pure read accessors over a committed UnifiedScores snapshot. None of
// these re-sort: output order inherits the aggregator's descending
// total-power ranking.

// MemberCount returns the number of known members.
func MemberCount(s UnifiedScores) int {
	return len(s.Members)
}

// TotalDelegatedScore sums all delegated voting power across delegates.
func TotalDelegatedScore(s UnifiedScores) float64 {
	var total float64
	for _, m := range s.Members {
		if m.DelegatedVP > 0 {
			total += m.DelegatedVP
		}
	}
	return total
}

// DelegateScore is the projection served for one delegate.
type DelegateScore struct {
	Address        string  `json:"address"`
	Score          float64 `json:"score"`
	DelegatedScore float64 `json:"delegatedScore"`
	NrDelegations  int     `json:"nrDelegations"`
}

// DelegateScores lists all active delegates in ranking order.
func DelegateScores(s UnifiedScores) []DelegateScore {
	out := []DelegateScore{}
	for _, addr := range s.Ranking {
		m := s.Members[addr]
		if m == nil || !m.IsDelegate() {
			continue
		}
		out = append(out, DelegateScore{
			Address:        addr,
			Score:          m.TotalVP(),
			DelegatedScore: m.DelegatedVP,
			NrDelegations:  m.NrDelegators,
		})
	}
	return out
}

// MemberEntry pairs an address with its member data for list responses.
type MemberEntry struct {
	Address string `json:"address"`
	MemberData
}

// FilterMembers returns members in ranking order, including a member when
// it is a delegate and includeAllDelegates is set, or when its own voting
// power meets the threshold.
func FilterMembers(s UnifiedScores, minVotingPower float64, includeAllDelegates bool) []MemberEntry {
	out := []MemberEntry{}
	for _, addr := range s.Ranking {
		m := s.Members[addr]
		if m == nil {
			continue
		}
		if (includeAllDelegates && m.IsDelegate()) || m.OwnVP >= minVotingPower {
			out = append(out, MemberEntry{Address: addr, MemberData: *m})
		}
	}
	return out
}
