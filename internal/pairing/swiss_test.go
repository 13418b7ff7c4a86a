package pairing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/jason-s-yu/tourney/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type playedSet map[[2]string]bool

func (s playedSet) add(a, b string) {
	s[[2]string{a, b}] = true
	s[[2]string{b, a}] = true
}

func (s playedSet) has(a, b string) bool { return s[[2]string{a, b}] }

// field builds n host-capable players p1..pn with strictly descending points.
func field(n, played int) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		out[i] = Candidate{
			ID:            fmt.Sprintf("p%d", i+1),
			Points:        n - i,
			Rating:        1500,
			MatchesPlayed: played,
			CanHost:       true,
		}
	}
	return out
}

func TestSwissFirstRoundPairsTopHalfAgainstBottomHalf(t *testing.T) {
	res, err := Swiss(Input{Candidates: field(8, 0), Round: 0}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Bye)
	assert.Equal(t, []Pair{
		{A: "p1", B: "p5"},
		{A: "p2", B: "p6"},
		{A: "p3", B: "p7"},
		{A: "p4", B: "p8"},
	}, res.Pairs)
}

func TestSwissLateRoundPairsNeighbours(t *testing.T) {
	res, err := Swiss(Input{Candidates: field(8, 3), Round: 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, []Pair{
		{A: "p1", B: "p2"},
		{A: "p3", B: "p4"},
		{A: "p5", B: "p6"},
		{A: "p7", B: "p8"},
	}, res.Pairs)
}

func TestSwissAvoidsRematches(t *testing.T) {
	played := playedSet{}
	played.add("p1", "p2")
	played.add("p3", "p4")

	res, err := Swiss(Input{Candidates: field(4, 1), Round: 1, Played: played.has}, nil)
	require.NoError(t, err)
	for _, p := range res.Pairs {
		assert.False(t, played.has(p.A, p.B), "%s and %s already played", p.A, p.B)
	}
}

func TestSwissByeSkipsPlayersWhoMissedARound(t *testing.T) {
	cands := field(5, 2)
	cands[4].MatchesPlayed = 1 // p5 joined late

	res, err := Swiss(Input{Candidates: cands, Round: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, "p4", res.Bye)
	assert.Len(t, res.Pairs, 2)
}

func TestSwissNoEligibleByeIsInvariant(t *testing.T) {
	cands := field(3, 0)
	_, err := Swiss(Input{Candidates: cands, Round: 1}, nil)
	require.Error(t, err)
	assert.True(t, models.IsInvariant(err))
}

func TestSwissUnsatisfiable(t *testing.T) {
	played := playedSet{}
	played.add("p1", "p2")

	_, err := Swiss(Input{Candidates: field(2, 1), Round: 1, Played: played.has}, nil)
	require.Error(t, err)
	assert.True(t, models.IsInvariant(err))
	assert.Contains(t, err.Error(), "p1")
}

func TestSwissRequiresAHost(t *testing.T) {
	cands := field(2, 0)
	cands[0].CanHost = false
	cands[1].CanHost = false

	_, err := Swiss(Input{Candidates: cands}, nil)
	assert.True(t, models.IsInvariant(err))
}

func TestSwissEmptyField(t *testing.T) {
	res, err := Swiss(Input{}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Pairs)
	assert.Empty(t, res.Bye)
}

// Every outcome is either a complete, rematch-free pairing or an invariant
// violation.
func TestSwissNeverReturnsPartialPairing(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		n := 2 + rng.Intn(11)
		round := rng.Intn(4)

		cands := make([]Candidate, n)
		for i := range cands {
			played := round
			if round > 0 && rng.Intn(4) == 0 {
				played = round - 1
			}
			cands[i] = Candidate{
				ID:            fmt.Sprintf("p%d", i),
				Points:        rng.Intn(round+1) - rng.Intn(round+1),
				Rating:        1400 + float64(rng.Intn(200)),
				MatchesPlayed: played,
				CanHost:       rng.Intn(5) != 0,
			}
		}
		played := playedSet{}
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if rng.Intn(3) == 0 {
					played.add(cands[i].ID, cands[j].ID)
				}
			}
		}

		res, err := Swiss(Input{Candidates: cands, Round: round, Played: played.has}, rng)
		if err != nil {
			require.True(t, models.IsInvariant(err), "seed %d: %v", seed, err)
			continue
		}

		seen := map[string]bool{}
		host := map[string]bool{}
		for _, c := range cands {
			host[c.ID] = c.CanHost
		}
		for _, p := range res.Pairs {
			require.False(t, seen[p.A], "seed %d: %s paired twice", seed, p.A)
			require.False(t, seen[p.B], "seed %d: %s paired twice", seed, p.B)
			seen[p.A], seen[p.B] = true, true
			require.False(t, played.has(p.A, p.B), "seed %d: rematch %s-%s", seed, p.A, p.B)
			require.True(t, host[p.A] || host[p.B], "seed %d: no host in %s-%s", seed, p.A, p.B)
		}
		if res.Bye != "" {
			require.False(t, seen[res.Bye], "seed %d: bye player also paired", seed)
			seen[res.Bye] = true
		}
		require.Len(t, seen, n, "seed %d: not every player covered", seed)
		assert.Equal(t, n%2 == 1, res.Bye != "", "seed %d", seed)
	}
}

func TestAssignHomesBalancesHosting(t *testing.T) {
	hosted := map[string]int{"a": 2, "b": 0, "c": 1, "d": 1}
	canHost := func(id string) bool { return id != "d" }

	homes := AssignHomes([]Pair{{A: "a", B: "b"}, {A: "c", B: "d"}}, hosted, canHost, rand.New(rand.NewSource(1)))
	assert.Equal(t, []string{"b", "c"}, homes)
	assert.Equal(t, 1, hosted["b"])
	assert.Equal(t, 2, hosted["c"])
}

func TestAssignHomesTieBreakIsRandom(t *testing.T) {
	counts := map[string]int{}
	rng := rand.New(rand.NewSource(7))
	always := func(string) bool { return true }
	for i := 0; i < 100; i++ {
		homes := AssignHomes([]Pair{{A: "x", B: "y"}}, map[string]int{}, always, rng)
		counts[homes[0]]++
	}
	assert.Greater(t, counts["x"], 0)
	assert.Greater(t, counts["y"], 0)
}
