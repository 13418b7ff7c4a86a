// Package pairing produces Swiss-round pairings by backtracking search.
package pairing

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/jason-s-yu/tourney/internal/models"
)

// maxSteps bounds the search so a pathological field fails instead of spinning.
const maxSteps = 2_000_000

// Candidate is one non-withdrawn player offered to the pairing engine.
type Candidate struct {
	ID            string
	Points        int
	Rating        float64
	MatchesPlayed int
	CanHost       bool
}

// Pair is one pairing; A is the higher-ranked player.
type Pair struct {
	A string
	B string
}

// Input describes one pairing request.
type Input struct {
	Candidates []Candidate
	// Played reports whether two players already met this event.
	Played func(a, b string) bool
	// Round is the number of rounds completed so far.
	Round int
}

// Result covers every candidate: disjoint pairs plus at most one bye.
type Result struct {
	Pairs []Pair
	Bye   string
}

// frame is one decision on the choice stack: the first unpaired player and the
// ordered opponents still to try for it.
type frame struct {
	first  int
	order  []int
	next   int
	chosen int
}

// Rank orders candidates by points, rating and matches played (all descending)
// with a random tie-break drawn from rng.
func Rank(cands []Candidate, rng *rand.Rand) []Candidate {
	ranked := make([]Candidate, len(cands))
	copy(ranked, cands)
	if rng != nil {
		rng.Shuffle(len(ranked), func(i, j int) { ranked[i], ranked[j] = ranked[j], ranked[i] })
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return a.MatchesPlayed > b.MatchesPlayed
	})
	return ranked
}

// Swiss computes a full pairing or returns an InvariantViolation. It never
// returns a partial pairing.
func Swiss(in Input, rng *rand.Rand) (Result, error) {
	played := in.Played
	if played == nil {
		played = func(string, string) bool { return false }
	}
	ranked := Rank(in.Candidates, rng)

	if len(ranked)%2 == 0 {
		pairs, ok := solve(ranked, played, in.Round)
		if !ok {
			return Result{}, unsatisfiable(ranked, in.Round)
		}
		return Result{Pairs: pairs}, nil
	}

	// Odd field: try byes from the bottom of the table upwards.
	for i := len(ranked) - 1; i >= 0; i-- {
		if ranked[i].MatchesPlayed < in.Round {
			continue
		}
		rest := make([]Candidate, 0, len(ranked)-1)
		rest = append(rest, ranked[:i]...)
		rest = append(rest, ranked[i+1:]...)
		if pairs, ok := solve(rest, played, in.Round); ok {
			return Result{Pairs: pairs, Bye: ranked[i].ID}, nil
		}
	}
	return Result{}, unsatisfiable(ranked, in.Round)
}

func unsatisfiable(ranked []Candidate, round int) error {
	ids := make([]string, len(ranked))
	for i, c := range ranked {
		ids[i] = c.ID
	}
	return models.Invariantf("no valid pairing for round %d among %d players [%s]", round+1, len(ranked), strings.Join(ids, ", "))
}

// solve pairs an even list in rank order. Backtracking pops a frame off the
// choice stack and moves on to that frame's next opponent.
func solve(ranked []Candidate, played func(a, b string) bool, round int) ([]Pair, bool) {
	n := len(ranked)
	if n == 0 {
		return nil, true
	}
	paired := make([]bool, n)
	stack := make([]frame, 0, n/2)

	open := func() bool {
		first := -1
		for i := range paired {
			if !paired[i] {
				first = i
				break
			}
		}
		if first < 0 {
			return false
		}
		var cands []int
		for j := first + 1; j < n; j++ {
			if !paired[j] && eligible(ranked[first], ranked[j], played) {
				cands = append(cands, j)
			}
		}
		idx := targetIndex(len(stack), n, round, len(cands))
		stack = append(stack, frame{first: first, order: spread(cands, idx), chosen: -1})
		return true
	}

	if !open() {
		return nil, true
	}
	for steps := 0; len(stack) > 0 && steps < maxSteps; steps++ {
		top := &stack[len(stack)-1]
		if top.chosen >= 0 {
			paired[top.first] = false
			paired[top.chosen] = false
			top.chosen = -1
		}
		if top.next >= len(top.order) {
			stack = stack[:len(stack)-1]
			continue
		}
		j := top.order[top.next]
		top.next++
		paired[top.first] = true
		paired[j] = true
		top.chosen = j

		if !open() {
			pairs := make([]Pair, len(stack))
			for i, fr := range stack {
				pairs[i] = Pair{A: ranked[fr.first].ID, B: ranked[fr.chosen].ID}
			}
			return pairs, true
		}
	}
	return nil, false
}

func eligible(a, b Candidate, played func(a, b string) bool) bool {
	if !a.CanHost && !b.CanHost {
		return false
	}
	return !played(a.ID, b.ID)
}

// targetIndex biases early rounds towards mid-field opponents and later rounds
// towards neighbours in the table.
func targetIndex(pairsSoFar, n, round, numCands int) int {
	if numCands == 0 {
		return 0
	}
	scale := math.Pow(2, float64(round))
	position := float64(2*pairsSoFar) / float64(n)
	goal := math.Ceil(float64(pairsSoFar*2+1)*scale/float64(n)) / scale
	if goal > 1 {
		goal = 1
	}
	if position >= 1 {
		return 0
	}
	target := ((position+goal)/2 - position) / (1 - position)
	idx := int(math.Floor(target * float64(numCands)))
	if idx < 0 {
		idx = 0
	}
	if idx >= numCands {
		idx = numCands - 1
	}
	return idx
}

// spread orders candidates closest-first around idx: idx, idx+1, idx-1, idx+2, ...
func spread(cands []int, idx int) []int {
	out := make([]int, 0, len(cands))
	if len(cands) == 0 {
		return out
	}
	out = append(out, cands[idx])
	for d := 1; len(out) < len(cands); d++ {
		if idx+d < len(cands) {
			out = append(out, cands[idx+d])
		}
		if idx-d >= 0 {
			out = append(out, cands[idx-d])
		}
	}
	return out
}

// AssignHomes picks the home player of every pair: whichever host-capable
// player has hosted fewer times this event, random on ties. hosted is updated
// as homes are handed out so one call balances a whole round.
func AssignHomes(pairs []Pair, hosted map[string]int, canHost func(id string) bool, rng *rand.Rand) []string {
	homes := make([]string, len(pairs))
	for i, p := range pairs {
		a, b := canHost(p.A), canHost(p.B)
		var home string
		switch {
		case a && !b:
			home = p.A
		case b && !a:
			home = p.B
		case hosted[p.A] < hosted[p.B]:
			home = p.A
		case hosted[p.B] < hosted[p.A]:
			home = p.B
		case rng != nil && rng.Intn(2) == 1:
			home = p.B
		default:
			home = p.A
		}
		hosted[home]++
		homes[i] = home
	}
	return homes
}
