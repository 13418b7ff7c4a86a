// Package tournament holds the authoritative state of the running event. Every
// command runs under one lock, so two triggers can never advance the same round
// or confirm the same match twice.
package tournament

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/jason-s-yu/tourney/internal/bracket"
	"github.com/jason-s-yu/tourney/internal/metrics"
	"github.com/jason-s-yu/tourney/internal/models"
	"github.com/jason-s-yu/tourney/internal/notify"
	"github.com/jason-s-yu/tourney/internal/push"
	"github.com/jason-s-yu/tourney/internal/standings"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSnapshotInterval = 5 * time.Minute
	DefaultTeardownGrace    = 2 * time.Minute
	DefaultReminderLead     = 24 * time.Hour
)

// Options tune a Store. Zero values fall back to the defaults.
type Options struct {
	SnapshotInterval time.Duration
	TeardownGrace    time.Duration
	ReminderLead     time.Duration
	Location         *time.Location
	// OperatorTarget is where operational failures are escalated.
	OperatorTarget string
	Rand           *rand.Rand
	Now            func() time.Time
	Logger         *logrus.Logger
	Metrics        *metrics.Metrics
}

// pendingSelection is a knockout round waiting for its selector.
type pendingSelection struct {
	bracket.Selection
	RoundName string `json:"roundName"`
}

// Store is the single running event with its players and matches.
type Store struct {
	mu      sync.Mutex
	opts    Options
	ports   Ports
	logger  *logrus.Entry
	rng     *rand.Rand
	now     func() time.Time
	metrics *metrics.Metrics

	event     models.Event
	players   []*models.Player
	matches   []*models.Match
	nextID    int
	hosted    map[string]int
	selection *pendingSelection
	// rated is the read-through cache of durable ratings; nil until loaded.
	rated map[string]models.RatedPlayer

	stopSnapshots chan struct{}
	reminder      *time.Timer
	teardowns     map[int]*time.Timer
}

func New(opts Options, ports Ports) *Store {
	if opts.SnapshotInterval <= 0 {
		opts.SnapshotInterval = DefaultSnapshotInterval
	}
	if opts.TeardownGrace <= 0 {
		opts.TeardownGrace = DefaultTeardownGrace
	}
	if opts.ReminderLead <= 0 {
		opts.ReminderLead = DefaultReminderLead
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &Store{
		opts:      opts,
		ports:     ports,
		logger:    opts.Logger.WithField("component", "tournament"),
		rng:       opts.Rand,
		now:       opts.Now,
		metrics:   opts.Metrics,
		nextID:    1,
		hosted:    make(map[string]int),
		teardowns: make(map[int]*time.Timer),
	}
}

func (s *Store) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event.Running
}

func (s *Store) IsFinals() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event.Running && s.event.IsFinals
}

func (s *Store) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event.Round
}

// Event returns a copy of the event record.
func (s *Store) Event() models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event
}

func (s *Store) GetPlayer(id string) (models.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.player(id)
	if p == nil {
		return models.Player{}, false
	}
	return *p, true
}

// GetCurrentMatch returns the active match of a player.
func (s *Store) GetCurrentMatch(playerID string) (*models.Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.activeMatch(playerID)
	if m == nil {
		return nil, false
	}
	return cloneMatch(m), true
}

func (s *Store) GetMatch(id int) (*models.Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.ID == id {
			return cloneMatch(m), true
		}
	}
	return nil, false
}

func (s *Store) GetAllMatches() []*models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Match, len(s.matches))
	for i, m := range s.matches {
		out[i] = cloneMatch(m)
	}
	return out
}

func (s *Store) Players() []models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Player, len(s.players))
	for i, p := range s.players {
		out[i] = *p
	}
	return out
}

// Standings returns the live table, best first.
func (s *Store) Standings() []models.Standing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.standingsLocked()
}

// Seeding lists the Finals field.
func (s *Store) Seeding() []push.Seed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seedingLocked()
}

// PendingSelection returns the knockout choice the bracket is waiting on.
func (s *Store) PendingSelection() (bracket.Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return bracket.Selection{}, false
	}
	return s.selection.Selection, true
}

// Subscribe registers an observer with the current state as its first messages.
func (s *Store) Subscribe() *push.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ports.Publisher.Subscribe(s.dumpLocked())
}

func (s *Store) dumpLocked() []push.Update {
	out := []push.Update{push.RoundUpdate(s.event.Round)}
	if !s.event.Running {
		return out
	}
	if !s.event.IsFinals {
		for _, p := range s.players {
			if !p.Withdrawn {
				out = append(out, push.AddPlayerUpdate(p))
			}
		}
	}
	for _, m := range s.matches {
		out = append(out, push.MatchUpdate(m))
	}
	if s.event.IsFinals {
		out = append(out, push.SeedingUpdate(s.seedingLocked()))
	} else {
		out = append(out, push.StandingsUpdate(s.standingsLocked()))
	}
	return out
}

func (s *Store) requireRunning(finals bool) error {
	if !s.event.Running {
		return models.UserErrorf("no event is running")
	}
	if s.event.IsFinals != finals {
		if finals {
			return models.UserErrorf("%s is not a Finals event", s.event.Name)
		}
		return models.UserErrorf("%s is a Finals event", s.event.Name)
	}
	return nil
}

func (s *Store) player(id string) *models.Player {
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Store) name(id string) string {
	if p := s.player(id); p != nil && p.Name != "" {
		return p.Name
	}
	return id
}

func (s *Store) match(id int) (*models.Match, error) {
	for _, m := range s.matches {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, models.UserErrorf("there is no match %d", id)
}

func (s *Store) activeMatch(playerID string) *models.Match {
	for _, m := range s.matches {
		if m.State.Active() && m.Has(playerID) {
			return m
		}
	}
	return nil
}

func (s *Store) anyActive() bool {
	for _, m := range s.matches {
		if m.State.Active() {
			return true
		}
	}
	return false
}

func (s *Store) homesOf(id string) []string {
	p := s.player(id)
	if p == nil {
		return nil
	}
	return append([]string(nil), p.Homes[:]...)
}

// offerHomesLocked fills the maps a knockout home player offers. A home player
// without declared homes hands the role to an opponent who has them; when
// neither has any, nothing is offered and the operator is asked to force a
// map. It reports whether maps are on offer.
func (s *Store) offerHomesLocked(m *models.Match) bool {
	if p := s.player(m.HomePlayer); p == nil || !p.HasHomes() {
		if o := s.player(m.Opponent(m.HomePlayer)); o != nil && o.HasHomes() {
			m.HomePlayer = o.ID
		} else {
			m.Homes = nil
			return false
		}
	}
	m.Homes = s.homesOf(m.HomePlayer)
	return true
}

// askForMapLocked tells the operator a match needs a forced map.
func (s *Store) askForMapLocked(ctx context.Context, m *models.Match) {
	s.announce(ctx, fmt.Sprintf("Match %d (%s) has no home maps on offer; set one with force-home.", m.ID, s.roomName(m)), s.opts.OperatorTarget)
}

func (s *Store) standingsLocked() []models.Standing {
	table := standings.Compute(s.players, s.matches)
	standings.Sort(table, s.rng)
	return table
}

func typeRank(t models.PlayerType) int {
	switch t {
	case models.TypeKnockout:
		return 0
	case models.TypeWildcard:
		return 1
	case models.TypeStandby:
		return 2
	default:
		return 3
	}
}

func (s *Store) seedingLocked() []push.Seed {
	ps := make([]*models.Player, len(s.players))
	copy(ps, s.players)
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if ra, rb := typeRank(a.Type), typeRank(b.Type); ra != rb {
			return ra < rb
		}
		if a.Seed != b.Seed {
			return a.Seed < b.Seed
		}
		return a.Score > b.Score
	})
	out := make([]push.Seed, len(ps))
	for i, p := range ps {
		out[i] = push.Seed{ID: p.ID, Name: p.Name, Seed: p.Seed, Score: p.Score, Type: p.Type, Status: p.Status}
	}
	return out
}

func (s *Store) publish(u push.Update) {
	if s.ports.Publisher != nil {
		s.ports.Publisher.Publish(u)
	}
}

// publishTable sends the standings of a Swiss event or the seeding of Finals.
func (s *Store) publishTable() {
	if s.event.IsFinals {
		s.publish(push.SeedingUpdate(s.seedingLocked()))
		return
	}
	s.publish(push.StandingsUpdate(s.standingsLocked()))
}

// escalate logs an operational failure, reports it to the operator and
// returns it as an OperationalError.
func (s *Store) escalate(ctx context.Context, op string, err error) error {
	s.metrics.OperationalErrors.WithLabelValues(op).Inc()
	s.logger.WithFields(logrus.Fields{
		"event_id": s.event.ID,
		"op":       op,
	}).WithError(err).Error("operation failed")
	if _, nerr := s.ports.Notifier.Announce(ctx, fmt.Sprintf("%s failed: %v", op, err), s.opts.OperatorTarget); nerr != nil {
		s.logger.WithError(nerr).Warn("failed to notify operator")
	}
	return models.Operational(op, err)
}

// announce posts a message after the state change it reports is committed, so
// a failure is escalated but does not fail the command.
func (s *Store) announce(ctx context.Context, text, target string) string {
	ref, err := s.ports.Notifier.Announce(ctx, text, target)
	if err != nil {
		_ = s.escalate(ctx, "announce", err)
	}
	return ref
}

func (s *Store) announceRich(ctx context.Context, msg notify.RichMessage, target string) string {
	ref, err := s.ports.Notifier.AnnounceRich(ctx, msg, target)
	if err != nil {
		_ = s.escalate(ctx, "announce", err)
	}
	return ref
}

// record queues a match command for the historian. The audit trail is best
// effort.
func (s *Store) record(ctx context.Context, matchID int, actor, action string, payload map[string]any) {
	if s.ports.Actions == nil {
		return
	}
	a := models.MatchAction{
		EventID:   s.event.ID,
		MatchID:   matchID,
		Actor:     actor,
		Action:    action,
		Payload:   payload,
		Timestamp: s.now().UnixMilli(),
	}
	if err := s.ports.Actions.Publish(ctx, a); err != nil {
		s.logger.WithError(err).WithField("match_id", matchID).Warn("failed to queue match action")
	}
}

func (s *Store) ensureRated(ctx context.Context) error {
	if s.rated != nil {
		return nil
	}
	rated, err := s.ports.Persistence.LoadRatedPlayers(ctx)
	if err != nil {
		return s.escalate(ctx, "load rated players", err)
	}
	if rated == nil {
		rated = make(map[string]models.RatedPlayer)
	}
	s.rated = rated
	return nil
}

// ensureRatedPlayer stores a default rating the first time a player takes part.
func (s *Store) ensureRatedPlayer(ctx context.Context, id, name string) error {
	if err := s.ensureRated(ctx); err != nil {
		return err
	}
	if _, ok := s.rated[id]; ok {
		return nil
	}
	rp := models.NewRatedPlayer(id, name)
	if err := s.ports.Persistence.SaveRatedPlayer(ctx, rp); err != nil {
		return s.escalate(ctx, "save rated player", err)
	}
	s.rated[id] = rp
	return nil
}

func cloneMatch(m *models.Match) *models.Match {
	c := *m
	c.Players = append([]string(nil), m.Players...)
	c.Homes = append([]string(nil), m.Homes...)
	if m.Legs != nil {
		c.Legs = make([][]int, len(m.Legs))
		for i, l := range m.Legs {
			c.Legs[i] = append([]int(nil), l...)
		}
	}
	if m.Pending != nil {
		p := *m.Pending
		p.Scores = append([]int(nil), m.Pending.Scores...)
		c.Pending = &p
	}
	if m.Result != nil {
		r := *m.Result
		r.Winners = append([]string(nil), m.Result.Winners...)
		r.Scores = append([]int(nil), m.Result.Scores...)
		c.Result = &r
	}
	if m.Channels != nil {
		ch := *m.Channels
		c.Channels = &ch
	}
	c.Records = append([]int64(nil), m.Records...)
	if m.Comments != nil {
		c.Comments = make(map[string]string, len(m.Comments))
		for k, v := range m.Comments {
			c.Comments[k] = v
		}
	}
	if m.TeardownAt != nil {
		t := *m.TeardownAt
		c.TeardownAt = &t
	}
	return &c
}
