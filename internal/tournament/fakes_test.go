package tournament

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/tourney/internal/models"
	"github.com/jason-s-yu/tourney/internal/notify"
	"github.com/jason-s-yu/tourney/internal/push"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeNotifier struct {
	mu        sync.Mutex
	seq       int
	announced []string
	targets   []string
	rooms     map[string]bool
	// failRoomsAfter makes room creation fail once this many rooms exist; -1 never.
	failRoomsAfter int
	roles          map[string][]string
	names          map[string]string
	missingRooms   map[string]bool
	missingMsgs    map[string]bool
	edits          int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		rooms:          make(map[string]bool),
		failRoomsAfter: -1,
		roles:          make(map[string][]string),
		names:          make(map[string]string),
		missingRooms:   make(map[string]bool),
		missingMsgs:    make(map[string]bool),
	}
}

func (f *fakeNotifier) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s:%d", prefix, f.seq)
}

func (f *fakeNotifier) Announce(_ context.Context, text, target string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announced = append(f.announced, text)
	f.targets = append(f.targets, target)
	return f.next("msg"), nil
}

func (f *fakeNotifier) AnnounceRich(ctx context.Context, msg notify.RichMessage, target string) (string, error) {
	return f.Announce(ctx, msg.Plain(), target)
}

func (f *fakeNotifier) EditRich(context.Context, string, notify.RichMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits++
	return nil
}

func (f *fakeNotifier) CreateMatchChannels(_ context.Context, name string) (models.Channels, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRoomsAfter >= 0 && len(f.rooms) >= f.failRoomsAfter {
		return models.Channels{}, errBoom
	}
	ref := f.next("room")
	f.rooms[ref] = true
	return models.Channels{Text: ref}, nil
}

func (f *fakeNotifier) TeardownChannels(_ context.Context, ch models.Channels) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, ch.Text)
	return nil
}

func (f *fakeNotifier) GrantRole(_ context.Context, user, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[user] = append(f.roles[user], role)
	return nil
}

func (f *fakeNotifier) RevokeRole(_ context.Context, user, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.roles[user][:0]
	for _, r := range f.roles[user] {
		if r != role {
			kept = append(kept, r)
		}
	}
	f.roles[user] = kept
	return nil
}

func (f *fakeNotifier) ResolveChannelByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missingRooms[id] {
		return fmt.Errorf("room %s not found", id)
	}
	return nil
}

func (f *fakeNotifier) ResolveMessageByRef(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missingMsgs[ref] {
		return fmt.Errorf("message %s not found", ref)
	}
	return nil
}

func (f *fakeNotifier) ResolveUserByID(_ context.Context, id string) (notify.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.names[id]; ok {
		return notify.User{ID: id, Name: n}, nil
	}
	return notify.User{}, fmt.Errorf("user %s not found", id)
}

func (f *fakeNotifier) openRooms() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms)
}

func (f *fakeNotifier) saw(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.announced {
		if a == text {
			return true
		}
	}
	return false
}

// heard reports whether any announcement contains text.
func (f *fakeNotifier) heard(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.announced {
		if strings.Contains(a, text) {
			return true
		}
	}
	return false
}

type fakePersistence struct {
	mu         sync.Mutex
	rated      map[string]models.RatedPlayer
	events     int64
	records    map[int64][]models.PlayerScore
	voided     map[int64]bool
	placements []models.Placement
	failRecord bool
	seq        int64
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{
		rated:   make(map[string]models.RatedPlayer),
		records: make(map[int64][]models.PlayerScore),
		voided:  make(map[int64]bool),
	}
}

func (f *fakePersistence) LoadRatedPlayers(context.Context) (map[string]models.RatedPlayer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.RatedPlayer, len(f.rated))
	for k, v := range f.rated {
		out[k] = v
	}
	return out, nil
}

func (f *fakePersistence) SaveRatedPlayer(_ context.Context, rp models.RatedPlayer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rated[rp.DiscordID] = rp
	return nil
}

func (f *fakePersistence) SaveRatedPlayers(_ context.Context, players []models.RatedPlayer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rp := range players {
		f.rated[rp.DiscordID] = rp
	}
	return nil
}

func (f *fakePersistence) CreateEvent(context.Context, int, string, time.Time, bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events++
	return f.events, nil
}

func (f *fakePersistence) RecordResult(_ context.Context, _ int64, _ string, _ int, scores []models.PlayerScore) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRecord {
		return 0, errBoom
	}
	f.seq++
	f.records[f.seq] = scores
	return f.seq, nil
}

func (f *fakePersistence) UpdateResult(_ context.Context, id int64, _ string, scores []models.PlayerScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return fmt.Errorf("no result %d", id)
	}
	f.records[id] = scores
	return nil
}

func (f *fakePersistence) VoidResult(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voided[id] = true
	return nil
}

func (f *fakePersistence) RecordPlacements(_ context.Context, _ int64, p []models.Placement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placements = p
	return nil
}

func (f *fakePersistence) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeSnapshots struct {
	mu   sync.Mutex
	blob []byte
}

func (f *fakeSnapshots) SnapshotEvent(_ context.Context, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blob = append([]byte(nil), blob...)
	return nil
}

func (f *fakeSnapshots) LoadSnapshot(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blob, nil
}

func (f *fakeSnapshots) ClearSnapshot(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blob = nil
	return nil
}

type fakeActions struct {
	mu      sync.Mutex
	actions []models.MatchAction
}

func (f *fakeActions) Publish(_ context.Context, a models.MatchAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, a)
	return nil
}

type fixture struct {
	store   *Store
	notify  *fakeNotifier
	db      *fakePersistence
	snaps   *fakeSnapshots
	actions *fakeActions
	hub     *push.Hub
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFixture(t *testing.T, tweak func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		notify:  newFakeNotifier(),
		db:      newFakePersistence(),
		snaps:   &fakeSnapshots{},
		actions: &fakeActions{},
		hub:     push.NewHub(quietLogger(), 256, nil),
	}
	opts := Options{
		SnapshotInterval: time.Hour,
		TeardownGrace:    time.Hour,
		ReminderLead:     time.Hour,
		Rand:             rand.New(rand.NewSource(7)),
		Logger:           quietLogger(),
	}
	if tweak != nil {
		tweak(&opts)
	}
	f.store = f.newStore(opts)
	return f
}

func (f *fixture) newStore(opts Options) *Store {
	return New(opts, Ports{
		Notifier:    f.notify,
		Persistence: f.db,
		Snapshots:   f.snaps,
		Publisher:   f.hub,
		Actions:     f.actions,
	})
}

func homes(id string) [3]string {
	return [3]string{id + "-a", id + "-b", id + "-c"}
}

func (f *fixture) openSwiss(t *testing.T, ids ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.OpenSwiss(ctx, 3, "Weekly", ""))
	for _, id := range ids {
		require.NoError(t, f.store.Join(ctx, JoinRequest{ID: id, Name: "Player " + id, CanHost: true, Homes: homes(id)}))
	}
}

// play takes a two-player match from home selection to confirmation; the
// first listed player wins 20-15.
func (f *fixture) play(t *testing.T, id int) {
	t.Helper()
	ctx := context.Background()
	m, ok := f.store.GetMatch(id)
	require.True(t, ok)
	if m.State == models.StateAwaitingHome {
		require.NoError(t, f.store.ChooseHome(ctx, id, m.Opponent(m.HomePlayer), 0, false))
	}
	require.NoError(t, f.store.Report(ctx, id, m.Players[0], []int{20, 15}, false))
	require.NoError(t, f.store.Confirm(ctx, id, m.Players[1], false))
}

func (f *fixture) activeIDs() []int {
	var ids []int
	for _, m := range f.store.GetAllMatches() {
		if m.State.Active() {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
