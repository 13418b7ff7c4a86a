package handlers

import (
	"net/http"

	"github.com/jason-s-yu/tourney/internal/middleware"
)

type homeRequest struct {
	// Choice is 1-based, as the maps are listed to players.
	Choice int `json:"choice"`
}

func (a *API) chooseHome(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	var req homeRequest
	if !decode(w, r, &req) {
		return
	}
	c, _ := middleware.ClaimsFrom(r.Context())
	a.done(w, r, a.store.ChooseHome(r.Context(), id, c.Subject, req.Choice-1, override(r)))
}

type forceHomeRequest struct {
	Map string `json:"map"`
}

func (a *API) forceHome(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	var req forceHomeRequest
	if !decode(w, r, &req) {
		return
	}
	a.done(w, r, a.store.ForceHome(r.Context(), id, req.Map))
}

type scoresRequest struct {
	Scores []int `json:"scores"`
}

func (a *API) report(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	var req scoresRequest
	if !decode(w, r, &req) {
		return
	}
	c, _ := middleware.ClaimsFrom(r.Context())
	a.done(w, r, a.store.Report(r.Context(), id, c.Subject, req.Scores, override(r)))
}

func (a *API) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	c, _ := middleware.ClaimsFrom(r.Context())
	a.done(w, r, a.store.Reject(r.Context(), id, c.Subject, override(r)))
}

func (a *API) confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	c, _ := middleware.ClaimsFrom(r.Context())
	a.done(w, r, a.store.Confirm(r.Context(), id, c.Subject, override(r)))
}

func (a *API) fixScore(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	var req scoresRequest
	if !decode(w, r, &req) {
		return
	}
	a.done(w, r, a.store.FixScore(r.Context(), id, req.Scores))
}

func (a *API) cancelMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	c, _ := middleware.ClaimsFrom(r.Context())
	a.done(w, r, a.store.CancelMatch(r.Context(), id, c.Subject))
}

type commentRequest struct {
	Text string `json:"text"`
}

func (a *API) comment(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if !decode(w, r, &req) {
		return
	}
	c, _ := middleware.ClaimsFrom(r.Context())
	a.done(w, r, a.store.Comment(r.Context(), id, c.Subject, req.Text))
}
