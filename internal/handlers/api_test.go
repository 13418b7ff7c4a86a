package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/tourney/internal/auth"
	"github.com/jason-s-yu/tourney/internal/models"
	"github.com/jason-s-yu/tourney/internal/notify"
	"github.com/jason-s-yu/tourney/internal/push"
	"github.com/jason-s-yu/tourney/internal/tournament"
)

type memPersistence struct {
	mu  sync.Mutex
	seq int64
}

func (m *memPersistence) LoadRatedPlayers(context.Context) (map[string]models.RatedPlayer, error) {
	return map[string]models.RatedPlayer{}, nil
}
func (m *memPersistence) SaveRatedPlayer(context.Context, models.RatedPlayer) error { return nil }

func (m *memPersistence) SaveRatedPlayers(context.Context, []models.RatedPlayer) error { return nil }

func (m *memPersistence) UpdateResult(context.Context, int64, string, []models.PlayerScore) error {
	return nil
}

func (m *memPersistence) VoidResult(context.Context, int64) error { return nil }

func (m *memPersistence) RecordPlacements(context.Context, int64, []models.Placement) error {
	return nil
}

func (m *memPersistence) CreateEvent(context.Context, int, string, time.Time, bool) (int64, error) {
	return m.next(), nil
}

func (m *memPersistence) RecordResult(context.Context, int64, string, int, []models.PlayerScore) (int64, error) {
	return m.next(), nil
}

func (m *memPersistence) next() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq
}

type memSnapshots struct{}

func (memSnapshots) SnapshotEvent(context.Context, []byte) error { return nil }

func (memSnapshots) LoadSnapshot(context.Context) ([]byte, error) { return nil, nil }

func (memSnapshots) ClearSnapshot(context.Context) error { return nil }

type harness struct {
	srv    *httptest.Server
	store  *tournament.Store
	signer *auth.Signer
	admin  string
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := quietLogger()
	store := tournament.New(tournament.Options{
		SnapshotInterval: time.Hour,
		TeardownGrace:    time.Hour,
		Logger:           logger,
	}, tournament.Ports{
		Notifier:    notify.NewLogging(logger),
		Persistence: &memPersistence{},
		Snapshots:   memSnapshots{},
		Publisher:   push.NewHub(logger, 0, nil),
	})
	signer, err := auth.NewSigner(time.Hour)
	require.NoError(t, err)
	hash, err := auth.CreateHash("hunter2", auth.HashParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)

	api := NewAPI(store, signer, Admin{ID: "op", PasswordHash: hash}, logger, Options{})
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)

	admin, err := signer.CreateJWT("op", true)
	require.NoError(t, err)
	return &harness{srv: srv, store: store, signer: signer, admin: admin}
}

func (h *harness) token(t *testing.T, id string) string {
	t.Helper()
	tok, err := h.signer.CreateJWT(id, false)
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path, token string, body any) (int, string) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(out)
}

func homes(id string) [3]string {
	return [3]string{id + "-a", id + "-b", id + "-c"}
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	code, _ := h.do(t, http.MethodPost, "/admin/login", "", loginRequest{ID: "op", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := h.do(t, http.MethodPost, "/admin/login", "", loginRequest{ID: "op", Password: "hunter2"})
	require.Equal(t, http.StatusOK, code)
	var tok tokenResponse
	require.NoError(t, json.Unmarshal([]byte(body), &tok))
	claims, err := h.signer.AuthenticateJWT(tok.Token)
	require.NoError(t, err)
	assert.True(t, claims.Admin)
	assert.Equal(t, "op", claims.Subject)
}

func TestAdminRoutesNeedAdminToken(t *testing.T) {
	h := newHarness(t)
	open := openRequest{Season: 1, Name: "Weekly"}

	code, _ := h.do(t, http.MethodPost, "/event/swiss", "", open)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = h.do(t, http.MethodPost, "/event/swiss", h.token(t, "alice"), open)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = h.do(t, http.MethodPost, "/event/swiss", h.admin, open)
	assert.Equal(t, http.StatusNoContent, code)
	assert.True(t, h.store.IsRunning())
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)

	code, body := h.do(t, http.MethodPost, "/event/end", h.admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "no event is running")

	h.do(t, http.MethodPost, "/event/swiss", h.admin, openRequest{Season: 1, Name: "Weekly"})
	for _, id := range []string{"a", "b"} {
		code, _ = h.do(t, http.MethodPost, "/players/join", h.token(t, id), tournament.JoinRequest{Name: strings.ToUpper(id)})
		require.Equal(t, http.StatusNoContent, code)
	}
	code, body = h.do(t, http.MethodPost, "/rounds/next", h.admin, nil)
	assert.Equal(t, http.StatusInternalServerError, code, "nobody can host")
	assert.Contains(t, body, "invariant violation")

	code, _ = h.do(t, http.MethodGet, "/matches/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSwissMatchOverHTTP(t *testing.T) {
	h := newHarness(t)
	code, _ := h.do(t, http.MethodPost, "/event/swiss", h.admin, openRequest{Season: 1, Name: "Weekly"})
	require.Equal(t, http.StatusNoContent, code)

	code, _ = h.do(t, http.MethodPost, "/players/join", h.token(t, "a"), tournament.JoinRequest{ID: "b", Name: "B"})
	assert.Equal(t, http.StatusBadRequest, code, "players join only themselves")

	for _, id := range []string{"a", "b"} {
		req := tournament.JoinRequest{Name: strings.ToUpper(id), CanHost: true, Homes: homes(id)}
		code, _ = h.do(t, http.MethodPost, "/players/join", h.token(t, id), req)
		require.Equal(t, http.StatusNoContent, code)
	}
	code, _ = h.do(t, http.MethodPost, "/rounds/next", h.admin, nil)
	require.Equal(t, http.StatusNoContent, code)

	m, ok := h.store.GetCurrentMatch("a")
	require.True(t, ok)
	picker := m.Opponent(m.HomePlayer)
	path := "/matches/" + strconv.Itoa(m.ID)

	code, _ = h.do(t, http.MethodPost, path+"/home", h.token(t, picker), homeRequest{Choice: 2})
	require.Equal(t, http.StatusNoContent, code)
	code, _ = h.do(t, http.MethodPost, path+"/report", h.token(t, m.Players[0]), scoresRequest{Scores: []int{20, 17}})
	require.Equal(t, http.StatusNoContent, code)
	code, _ = h.do(t, http.MethodPost, path+"/confirm", h.token(t, m.Players[0]), nil)
	assert.Equal(t, http.StatusBadRequest, code, "the reporter cannot confirm")
	code, _ = h.do(t, http.MethodPost, path+"/confirm", h.token(t, m.Players[1]), nil)
	require.Equal(t, http.StatusNoContent, code)

	code, body := h.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, code)
	var got models.Match
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, models.StateConfirmed, got.State)
	assert.Equal(t, homes(m.HomePlayer)[1], got.Home)

	code, body = h.do(t, http.MethodGet, "/standings", "", nil)
	require.Equal(t, http.StatusOK, code)
	var table []models.Standing
	require.NoError(t, json.Unmarshal([]byte(body), &table))
	require.Len(t, table, 2)
	assert.Equal(t, m.Players[0], table[0].ID)
	assert.Equal(t, 1, table[0].Wins)
}

func TestPushSocketSendsDump(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/event/swiss", h.admin, openRequest{Season: 1, Name: "Weekly"})
	h.do(t, http.MethodPost, "/players/join", h.token(t, "a"), tournament.JoinRequest{Name: "A"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	var first push.Update
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &first))
	require.NotNil(t, first.Round)
	assert.Equal(t, 0, *first.Round)

	_, data, err = c.Read(ctx)
	require.NoError(t, err)
	var second push.Update
	require.NoError(t, json.Unmarshal(data, &second))
	require.NotNil(t, second.AddPlayer)
	assert.Equal(t, "A", second.AddPlayer.Name)

	h.do(t, http.MethodPost, "/players/join", h.token(t, "b"), tournament.JoinRequest{Name: "B"})
	for {
		_, data, err = c.Read(ctx)
		require.NoError(t, err)
		var u push.Update
		require.NoError(t, json.Unmarshal(data, &u))
		if u.AddPlayer != nil {
			assert.Equal(t, "B", u.AddPlayer.Name)
			return
		}
	}
}

func TestPushSocketRejectsMissingSubprotocol(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	_, _, err = c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
}
