// Package metrics builds the unified voting-power model and the token
// supply distribution breakdown from independent, eventually-consistent
// sources.
package metrics

// Cache names and snapshot schema versions. A persisted snapshot with any
// other version is discarded on load.
const (
	UnifiedScoresCacheName = "unified_scores"
	DistributionCacheName  = "distribution"

	UnifiedScoresSchemaVersion = 3
	DistributionSchemaVersion  = 2
)

// MemberData is everything known about one account. DelegatedVP and
// NrDelegators are set iff the account is an active delegate; Delegate is
// set iff the account has an outbound delegation; Locker is set iff the
// account owns a resolved locker contract.
type MemberData struct {
	OwnVP        float64 `json:"ownVp"`
	DelegatedVP  float64 `json:"delegatedVp,omitempty"`
	NrDelegators int     `json:"nrDelegators,omitempty"`
	Delegate     string  `json:"delegate,omitempty"`
	Locker       string  `json:"locker,omitempty"`
}

// TotalVP is the member's effective power: own plus received delegations.
func (m MemberData) TotalVP() float64 {
	return m.OwnVP + m.DelegatedVP
}

// IsDelegate reports whether the account receives nonzero delegated power.
func (m MemberData) IsDelegate() bool {
	return m.DelegatedVP > 0
}

// UnifiedScores is the member/delegation/voting-power model. Members is
// keyed by lowercase address; every delegation edge resolves to an entry
// (created with zero own power if otherwise unseen).
type UnifiedScores struct {
	Members map[string]*MemberData `json:"members"`
	// Ranking lists member addresses in non-increasing TotalVP order.
	// This ordering is an output contract; consumers rely on it.
	Ranking []string `json:"ranking"`
}

// NewUnifiedScores returns an empty model.
func NewUnifiedScores() UnifiedScores {
	return UnifiedScores{Members: map[string]*MemberData{}}
}

// DistributionMetrics breaks total token supply down by custody category,
// in whole-token units. Other is the unaccounted remainder and may be
// negative when accounting overlaps; it is surfaced verbatim.
type DistributionMetrics struct {
	TotalSupply     float64 `json:"totalSupply"`
	Lockers         float64 `json:"lockers"`
	CommunityCharge float64 `json:"communityCharge"`
	InvestorsTeam   float64 `json:"investorsTeam"`
	DAOTreasury     float64 `json:"daoTreasury"`
	Foundation      float64 `json:"foundation"`
	Other           float64 `json:"other"`
}
