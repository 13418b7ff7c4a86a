package handlers

import (
	"net/http"

	"github.com/jason-s-yu/tourney/internal/middleware"
	"github.com/jason-s-yu/tourney/internal/tournament"
)

func (a *API) invite(w http.ResponseWriter, r *http.Request) {
	var req tournament.InviteRequest
	if !decode(w, r, &req) {
		return
	}
	a.done(w, r, a.store.Invite(r.Context(), req))
}

type respondRequest struct {
	ID     string `json:"id"`
	Accept bool   `json:"accept"`
}

func (a *API) respond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := actor(r, req.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.done(w, r, a.store.Respond(r.Context(), id, req.Accept))
}

func (a *API) startFinals(w http.ResponseWriter, r *http.Request) {
	a.done(w, r, a.store.StartFinals(r.Context()))
}

type opponentRequest struct {
	Opponent string `json:"opponent"`
}

func (a *API) selectOpponent(w http.ResponseWriter, r *http.Request) {
	var req opponentRequest
	if !decode(w, r, &req) {
		return
	}
	c, _ := middleware.ClaimsFrom(r.Context())
	a.done(w, r, a.store.SelectOpponent(r.Context(), c.Subject, req.Opponent, override(r)))
}
