package tournament

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jason-s-yu/tourney/internal/bracket"
	"github.com/jason-s-yu/tourney/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) openFinals(t *testing.T, knockouts, wildcards int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.OpenFinals(ctx, 3, "Season Finals", ""))
	for i := 1; i <= knockouts; i++ {
		id := fmt.Sprintf("k%d", i)
		require.NoError(t, f.store.Invite(ctx, InviteRequest{ID: id, Name: strings.ToUpper(id), Type: models.TypeKnockout, Seed: i, Homes: homes(id)}))
		require.NoError(t, f.store.Respond(ctx, id, true))
	}
	for i := 1; i <= wildcards; i++ {
		id := fmt.Sprintf("w%d", i)
		req := InviteRequest{ID: id, Name: strings.ToUpper(id), Type: models.TypeWildcard, Score: 100 - i, AnarchyMap: "arena", Homes: homes(id)}
		require.NoError(t, f.store.Invite(ctx, req))
		require.NoError(t, f.store.Respond(ctx, id, true))
	}
}

func TestFinalsFourSeedsWaitForSelection(t *testing.T) {
	f := newFixture(t, nil)
	f.openFinals(t, 4, 0)
	ctx := context.Background()

	require.NoError(t, f.store.StartFinals(ctx))
	sel, ok := f.store.PendingSelection()
	require.True(t, ok)
	assert.Equal(t, bracket.Selection{Selector: "k1", Options: []string{"k2", "k3", "k4"}}, sel)
	assert.Empty(t, f.store.GetAllMatches(), "no match before seed 1 chooses")

	err := f.store.SelectOpponent(ctx, "k2", "k3", false)
	assert.True(t, models.IsUserError(err))
	err = f.store.SelectOpponent(ctx, "k1", "k1", false)
	assert.True(t, models.IsUserError(err))

	require.NoError(t, f.store.SelectOpponent(ctx, "k1", "k3", false))
	_, ok = f.store.PendingSelection()
	assert.False(t, ok)

	ms := f.store.GetAllMatches()
	require.Len(t, ms, 2)
	assert.Equal(t, []string{"k1", "k3"}, ms[0].Players)
	assert.Equal(t, []string{"k2", "k4"}, ms[1].Players)
	for _, m := range ms {
		assert.Equal(t, bracket.RoundSemifinal, m.RoundName)
		assert.Equal(t, m.Players[1], m.HomePlayer, "the lower seed hosts leg 1")
		offered := homes(m.Players[1])
		assert.Equal(t, offered[:], m.Homes)
	}
}

func TestStartFinalsNeedsEveryAnswer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.OpenFinals(ctx, 1, "Finals", ""))
	require.NoError(t, f.store.Invite(ctx, InviteRequest{ID: "k1", Name: "K1", Type: models.TypeKnockout, Seed: 1}))
	require.NoError(t, f.store.Invite(ctx, InviteRequest{ID: "k2", Name: "K2", Type: models.TypeKnockout, Seed: 2}))
	require.NoError(t, f.store.Respond(ctx, "k1", true))

	err := f.store.StartFinals(ctx)
	assert.True(t, models.IsUserError(err))

	err = f.store.Invite(ctx, InviteRequest{ID: "k3", Name: "K3", Type: models.TypeKnockout, Seed: 2})
	assert.True(t, models.IsUserError(err), "seed 2 is taken")
}

func TestDeclineHandsPlaceToBestStandby(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.OpenFinals(ctx, 1, "Finals", ""))
	require.NoError(t, f.store.Invite(ctx, InviteRequest{ID: "k1", Name: "K1", Type: models.TypeKnockout, Seed: 1}))
	require.NoError(t, f.store.Invite(ctx, InviteRequest{ID: "k2", Name: "K2", Type: models.TypeKnockout, Seed: 2}))
	require.NoError(t, f.store.Invite(ctx, InviteRequest{ID: "s1", Name: "S1", Type: models.TypeStandby, Score: 5}))
	require.NoError(t, f.store.Invite(ctx, InviteRequest{ID: "s2", Name: "S2", Type: models.TypeStandby, Score: 9}))

	require.NoError(t, f.store.Respond(ctx, "k2", false))
	s2, _ := f.store.GetPlayer("s2")
	assert.Equal(t, models.TypeKnockout, s2.Type)
	assert.Equal(t, 2, s2.Seed)
	s1, _ := f.store.GetPlayer("s1")
	assert.Equal(t, models.TypeStandby, s1.Type)

	err := f.store.Respond(ctx, "k2", true)
	assert.True(t, models.IsUserError(err), "an answer is final")
}

func TestFinalCrownsChampionAndEndsEvent(t *testing.T) {
	f := newFixture(t, nil)
	f.openFinals(t, 2, 0)
	ctx := context.Background()

	require.NoError(t, f.store.StartFinals(ctx))
	ms := f.store.GetAllMatches()
	require.Len(t, ms, 1)
	m := ms[0]
	assert.Equal(t, bracket.RoundFinal, m.RoundName)

	require.NoError(t, f.store.ChooseHome(ctx, m.ID, "k1", 0, false))
	require.NoError(t, f.store.Report(ctx, m.ID, "k1", []int{20, 5}, false))
	require.NoError(t, f.store.Confirm(ctx, m.ID, "k2", false))

	assert.False(t, f.store.IsRunning())
	assert.Contains(t, f.notify.roles["k1"], "champion")
	assert.Equal(t, []models.Placement{{ID: "k1", Place: 1}, {ID: "k2", Place: 2}}, f.db.placements)
	assert.Greater(t, f.db.rated["k1"].Rating, models.DefaultRating)
	assert.Less(t, f.db.rated["k2"].Rating, models.DefaultRating)
	assert.True(t, f.notify.saw("K1 is the champion of Season Finals!"))
}

func TestKnockoutSeriesPlaysSecondLeg(t *testing.T) {
	f := newFixture(t, nil)
	f.openFinals(t, 2, 0)
	ctx := context.Background()
	require.NoError(t, f.store.StartFinals(ctx))
	id := f.store.GetAllMatches()[0].ID

	require.NoError(t, f.store.ChooseHome(ctx, id, "k1", 0, false))
	require.NoError(t, f.store.Report(ctx, id, "k2", []int{15, 20}, false))
	require.NoError(t, f.store.Confirm(ctx, id, "k1", false))

	m, _ := f.store.GetMatch(id)
	assert.Equal(t, models.StateAwaitingHome, m.State)
	assert.Equal(t, 2, m.Leg)
	assert.Equal(t, 15, m.LegGoal)
	assert.Equal(t, "k1", m.HomePlayer)
	k1Homes := homes("k1")
	assert.Equal(t, k1Homes[:], m.Homes)
	assert.Len(t, m.Records, 1)
	assert.True(t, f.store.IsRunning())

	require.NoError(t, f.store.ChooseHome(ctx, id, "k2", 2, false))
	require.NoError(t, f.store.Report(ctx, id, "k1", []int{15, 3}, false))
	require.NoError(t, f.store.Confirm(ctx, id, "k2", false))

	assert.False(t, f.store.IsRunning(), "aggregate 30-23 decides the final")
	assert.Equal(t, 1, f.db.placements[0].Place)
	assert.Equal(t, "k1", f.db.placements[0].ID)
	assert.Equal(t, 2, f.db.recordCount())
}

func TestWildcardStageFeedsKnockouts(t *testing.T) {
	f := newFixture(t, nil)
	f.openFinals(t, 2, 6)
	ctx := context.Background()

	require.NoError(t, f.store.StartFinals(ctx))
	ms := f.store.GetAllMatches()
	require.Len(t, ms, 1)
	g := ms[0]
	assert.Equal(t, models.KindWildcard, g.Kind)
	assert.Len(t, g.Players, 6)
	assert.Equal(t, 4, g.Advance)
	assert.Equal(t, 30, g.KillGoal)
	assert.Equal(t, "arena", g.Home)

	scores := []int{30, 25, 20, 15, 10, 5}
	require.NoError(t, f.store.Report(ctx, g.ID, g.Players[5], scores, false))
	require.NoError(t, f.store.Confirm(ctx, g.ID, g.Players[0], false))

	for i, id := range g.Players {
		p, _ := f.store.GetPlayer(id)
		if i < 4 {
			assert.Equal(t, models.TypeKnockout, p.Type)
			assert.Equal(t, 3+i, p.Seed, "promoted in finishing order")
		} else {
			assert.Equal(t, models.TypeEliminated, p.Type)
		}
	}
	sel, ok := f.store.PendingSelection()
	require.True(t, ok)
	assert.Equal(t, g.Players[0], sel.Selector)
	assert.Equal(t, g.Players[1:4], sel.Options)
	assert.Equal(t, 2, f.store.Round())
}

func TestFinalsReminderFiresOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	date := time.Now().UTC().Add(time.Hour + 30*time.Millisecond).Format(time.RFC3339Nano)

	require.NoError(t, f.store.OpenFinals(ctx, 1, "Finals", date))
	assert.Eventually(t, func() bool { return f.store.Event().WarningSent }, 2*time.Second, 10*time.Millisecond)
}

func TestKnockoutHostWithoutHomesHandsOverRole(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.OpenFinals(ctx, 3, "Season Finals", ""))
	require.NoError(t, f.store.Invite(ctx, InviteRequest{ID: "k1", Name: "K1", Type: models.TypeKnockout, Seed: 1, Homes: homes("k1")}))
	require.NoError(t, f.store.Invite(ctx, InviteRequest{ID: "k2", Name: "K2", Type: models.TypeKnockout, Seed: 2}))
	require.NoError(t, f.store.Respond(ctx, "k1", true))
	require.NoError(t, f.store.Respond(ctx, "k2", true))
	require.NoError(t, f.store.StartFinals(ctx))

	m := f.store.GetAllMatches()[0]
	assert.Equal(t, "k1", m.HomePlayer, "k2 has no homes to offer")
	k1Homes := homes("k1")
	assert.Equal(t, k1Homes[:], m.Homes)

	require.NoError(t, f.store.ChooseHome(ctx, m.ID, "k2", 0, false))
	require.NoError(t, f.store.Report(ctx, m.ID, "k1", []int{15, 20}, false))
	require.NoError(t, f.store.Confirm(ctx, m.ID, "k2", false))
	require.NoError(t, f.store.ChooseHome(ctx, m.ID, "k2", 1, false))
	require.NoError(t, f.store.Report(ctx, m.ID, "k1", []int{15, 10}, false))
	require.NoError(t, f.store.Confirm(ctx, m.ID, "k2", false))

	m, _ = f.store.GetMatch(m.ID)
	assert.Equal(t, 3, m.Leg)
	assert.Equal(t, models.StateAwaitingHome, m.State)
	assert.Equal(t, "k1", m.HomePlayer)
	assert.Equal(t, k1Homes[:], m.Homes)
	assert.True(t, f.notify.heard("Final, overtime: K1 vs K2, race to 5 win by 2."))
}

func TestKnockoutWithoutAnyHomesAsksOperator(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.OpenFinals(ctx, 3, "Season Finals", ""))
	for i, id := range []string{"k1", "k2"} {
		require.NoError(t, f.store.Invite(ctx, InviteRequest{ID: id, Name: strings.ToUpper(id), Type: models.TypeKnockout, Seed: i + 1}))
		require.NoError(t, f.store.Respond(ctx, id, true))
	}
	require.NoError(t, f.store.StartFinals(ctx))

	m := f.store.GetAllMatches()[0]
	assert.Empty(t, m.Homes)
	assert.True(t, f.notify.heard("has no home maps on offer"))
	err := f.store.ChooseHome(ctx, m.ID, "k1", 0, false)
	assert.True(t, models.IsUserError(err))

	require.NoError(t, f.store.ForceHome(ctx, m.ID, "arena"))
	require.NoError(t, f.store.Report(ctx, m.ID, "k1", []int{20, 5}, false))
	require.NoError(t, f.store.Confirm(ctx, m.ID, "k2", false))
	assert.False(t, f.store.IsRunning())
}

func TestInviteRejectsPartialHomes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.OpenFinals(ctx, 3, "Season Finals", ""))
	err := f.store.Invite(ctx, InviteRequest{ID: "k1", Name: "K1", Type: models.TypeKnockout, Seed: 1, Homes: [3]string{"x", "", ""}})
	assert.True(t, models.IsUserError(err))
}

// sweep settles a knockout series in one leg.
func (f *fixture) sweep(t *testing.T, id int) {
	t.Helper()
	ctx := context.Background()
	m, ok := f.store.GetMatch(id)
	require.True(t, ok)
	require.NoError(t, f.store.ChooseHome(ctx, id, m.Opponent(m.HomePlayer), 0, false))
	require.NoError(t, f.store.Report(ctx, id, m.Players[0], []int{20, 5}, false))
	require.NoError(t, f.store.Confirm(ctx, id, m.Players[1], false))
}

func (f *fixture) openSemifinals(t *testing.T) []*models.Match {
	t.Helper()
	f.openFinals(t, 4, 0)
	ctx := context.Background()
	require.NoError(t, f.store.StartFinals(ctx))
	require.NoError(t, f.store.SelectOpponent(ctx, "k1", "k3", false))
	ms := f.store.GetAllMatches()
	require.Len(t, ms, 2)
	return ms
}

func TestConfirmKeepsResultWhenNextStageCannotOpen(t *testing.T) {
	f := newFixture(t, nil)
	semis := f.openSemifinals(t)
	ctx := context.Background()

	f.sweep(t, semis[0].ID)
	f.notify.failRoomsAfter = 0
	f.sweep(t, semis[1].ID)

	m, _ := f.store.GetMatch(semis[1].ID)
	assert.Equal(t, models.StateConfirmed, m.State, "the confirmed leg stays committed")
	assert.Len(t, f.store.GetAllMatches(), 2)
	assert.True(t, f.notify.saw("create match channels failed: boom"))

	f.notify.failRoomsAfter = -1
	require.NoError(t, f.store.StartFinals(ctx))
	ms := f.store.GetAllMatches()
	require.Len(t, ms, 3)
	assert.Equal(t, []string{"k1", "k2"}, ms[2].Players)
	assert.Equal(t, bracket.RoundFinal, ms[2].RoundName)
}

func TestFinalsWithdrawalCommitsWhenNextStageCannotOpen(t *testing.T) {
	f := newFixture(t, nil)
	semis := f.openSemifinals(t)
	ctx := context.Background()

	f.sweep(t, semis[0].ID)
	f.notify.failRoomsAfter = 0
	require.NoError(t, f.store.Withdraw(ctx, "k2"))

	k2, _ := f.store.GetPlayer("k2")
	assert.True(t, k2.Withdrawn)
	m, _ := f.store.GetMatch(semis[1].ID)
	assert.Equal(t, models.StateCancelled, m.State)

	f.notify.failRoomsAfter = -1
	require.NoError(t, f.store.StartFinals(ctx))
	var open int
	for _, m := range f.store.GetAllMatches() {
		if m.State.Active() {
			open++
			assert.NotContains(t, m.Players, "k2")
		}
	}
	assert.Equal(t, 1, open)
}
