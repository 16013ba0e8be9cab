package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func model() UnifiedScores {
	s := NewUnifiedScores()
	s.Members[delegateD] = &MemberData{OwnVP: 10, DelegatedVP: 500000, NrDelegators: 3}
	s.Members[accountA] = &MemberData{OwnVP: 150000, Delegate: delegateD}
	s.Members[accountB] = &MemberData{OwnVP: 50000}
	// A delegate with zero own power, reachable only through its inbound
	// delegations.
	s.Members[delegateE] = &MemberData{OwnVP: 0, DelegatedVP: 1000, NrDelegators: 1}
	s.Ranking = rankMembers(s.Members)
	return s
}

func TestTotalDelegatedScore(t *testing.T) {
	s := model()
	assert.InDelta(t, 501000, TotalDelegatedScore(s), 1e-9)
	assert.Equal(t, 4, MemberCount(s))
}

func TestDelegateScoresListsDelegatesInRankingOrder(t *testing.T) {
	s := model()

	delegates := DelegateScores(s)
	require.Len(t, delegates, 2)

	assert.Equal(t, delegateD, delegates[0].Address)
	assert.InDelta(t, 500010, delegates[0].Score, 1e-9)
	assert.InDelta(t, 500000, delegates[0].DelegatedScore, 1e-9)
	assert.Equal(t, 3, delegates[0].NrDelegations)

	assert.Equal(t, delegateE, delegates[1].Address)
}

func TestFilterMembersByThreshold(t *testing.T) {
	s := model()

	got := FilterMembers(s, 100000, false)
	require.Len(t, got, 1)
	assert.Equal(t, accountA, got[0].Address)
}

func TestFilterMembersIncludesAllDelegates(t *testing.T) {
	s := model()

	// Delegate E has zero own power but is included because it is a
	// delegate; ordering still follows the ranking.
	got := FilterMembers(s, 100000, true)
	require.Len(t, got, 3)
	assert.Equal(t, delegateD, got[0].Address)
	assert.Equal(t, accountA, got[1].Address)
	assert.Equal(t, delegateE, got[2].Address)
}

func TestFilterMembersZeroThresholdIncludesEveryone(t *testing.T) {
	s := model()
	assert.Len(t, FilterMembers(s, 0, false), 4)
}
