package tournament

import (
	"context"
	"fmt"
	"strings"

	"github.com/jason-s-yu/tourney/internal/bracket"
	"github.com/jason-s-yu/tourney/internal/models"
	"github.com/jason-s-yu/tourney/internal/push"
)

func (s *Store) roomName(m *models.Match) string {
	if m.Kind == models.KindWildcard {
		return fmt.Sprintf("r%d-%d-wildcard", m.Round, m.ID)
	}
	names := make([]string, len(m.Players))
	for i, id := range m.Players {
		names[i] = s.name(id)
	}
	return fmt.Sprintf("r%d-%d-%s", m.Round, m.ID, strings.Join(names, "-vs-"))
}

// openRoomsLocked creates the rooms of new matches. When one fails every room
// created for the batch is removed again and nothing is committed.
func (s *Store) openRoomsLocked(ctx context.Context, ms []*models.Match) error {
	created := make([]models.Channels, 0, len(ms))
	for _, m := range ms {
		ch, err := s.ports.Notifier.CreateMatchChannels(ctx, s.roomName(m))
		if err != nil {
			for _, c := range created {
				if terr := s.ports.Notifier.TeardownChannels(ctx, c); terr != nil {
					s.logger.WithError(terr).Warn("failed to remove room after aborted setup")
				}
			}
			for _, m := range ms {
				m.Channels = nil
			}
			return s.escalate(ctx, "create match channels", err)
		}
		created = append(created, ch)
		c := ch
		m.Channels = &c
	}
	return nil
}

// commitMatchesLocked adds opened matches to the event and introduces them.
func (s *Store) commitMatchesLocked(ctx context.Context, ms []*models.Match) {
	for _, m := range ms {
		s.matches = append(s.matches, m)
		if m.ID >= s.nextID {
			s.nextID = m.ID + 1
		}
		target := ""
		if m.Channels != nil {
			target = m.Channels.Text
		}
		s.announce(ctx, s.introLocked(m), target)
		if m.State == models.StateAwaitingHome && len(m.Homes) == 0 {
			s.askForMapLocked(ctx, m)
		}
		s.record(ctx, m.ID, "", "open", map[string]any{"players": m.Players, "round": m.Round})
		s.publish(push.MatchUpdate(m))
	}
}

func (s *Store) introLocked(m *models.Match) string {
	var b strings.Builder
	switch m.Kind {
	case models.KindWildcard:
		names := make([]string, len(m.Players))
		for i, id := range m.Players {
			names[i] = s.name(id)
		}
		fmt.Fprintf(&b, "Wildcard anarchy: %s.\nMap %s, first to %d kills with %d primaries. The top %d advance.",
			strings.Join(names, ", "), m.Home, m.KillGoal, m.Primaries, m.Advance)
		return b.String()
	case models.KindKnockout:
		if m.Leg > 2 {
			fmt.Fprintf(&b, "%s, overtime: %s vs %s, race to %d win by %d.", m.RoundName, s.name(m.Players[0]), s.name(m.Players[1]), bracket.OvertimeGoal, bracket.OvertimeWinBy)
		} else {
			fmt.Fprintf(&b, "%s, leg %d: %s vs %s, race to %d.", m.RoundName, m.Leg, s.name(m.Players[0]), s.name(m.Players[1]), m.LegGoal)
		}
	default:
		fmt.Fprintf(&b, "Round %d: %s vs %s, race to 20 win by 2.", m.Round, s.name(m.Players[0]), s.name(m.Players[1]))
	}
	switch {
	case m.State != models.StateAwaitingHome:
	case len(m.Homes) == 0:
		b.WriteString("\nNeither player has declared home maps; an admin will set the map.")
	default:
		host := s.name(m.HomePlayer)
		fmt.Fprintf(&b, "\n%s hosts; %s picks one of their homes:", host, s.name(m.Opponent(m.HomePlayer)))
		for i, h := range m.Homes {
			fmt.Fprintf(&b, "\n%d. %s", i+1, h)
		}
	}
	return b.String()
}
