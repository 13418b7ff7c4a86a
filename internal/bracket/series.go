package bracket

const (
	// KnockoutKillGoal is the race length of the first leg of a series.
	KnockoutKillGoal = 20
	// DecisiveGap ends a series after the first leg.
	DecisiveGap = KnockoutKillGoal / 2

	OvertimeGoal  = 5
	OvertimeWinBy = 2
)

// SeriesStatus summarises a two-player knockout series. Indexes refer to the
// match's player order, higher seed first.
type SeriesStatus struct {
	Decided   bool
	Winner    int
	Aggregate [2]int
	NextLeg   int
	NextGoal  int
	Overtime  bool
}

// Series evaluates the confirmed legs of a knockout series.
//
// Leg 1 is a race to 20. A gap above 10 decides it. Otherwise leg 2 is a race
// to 20 minus the gap and the aggregate decides; a level aggregate goes to
// overtime legs of first to 5, win by 2.
func Series(legs [][]int) SeriesStatus {
	var st SeriesStatus
	for i, leg := range legs {
		if len(leg) != 2 || i >= 2 {
			continue
		}
		st.Aggregate[0] += leg[0]
		st.Aggregate[1] += leg[1]
	}

	switch {
	case len(legs) == 0:
		st.NextLeg, st.NextGoal = 1, KnockoutKillGoal
	case len(legs) == 1:
		gap := abs(st.Aggregate[0] - st.Aggregate[1])
		if gap > DecisiveGap {
			st.Decided, st.Winner = true, leader(st.Aggregate)
			return st
		}
		st.NextLeg, st.NextGoal = 2, KnockoutKillGoal-gap
	case len(legs) == 2:
		if st.Aggregate[0] != st.Aggregate[1] {
			st.Decided, st.Winner = true, leader(st.Aggregate)
			return st
		}
		st.NextLeg, st.NextGoal, st.Overtime = 3, OvertimeGoal, true
	default:
		last := legs[len(legs)-1]
		st.Decided, st.Winner = true, leader([2]int{last[0], last[1]})
	}
	return st
}

// LegHome is the index of the player who picks the map for a leg: the lower
// seed on leg 1 and in overtime, the higher seed on leg 2.
func LegHome(leg int) int {
	if leg == 2 {
		return 0
	}
	return 1
}

func leader(s [2]int) int {
	if s[1] > s[0] {
		return 1
	}
	return 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
