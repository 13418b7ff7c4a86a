package handlers

import (
	"net/http"

	"github.com/jason-s-yu/tourney/internal/tournament"
)

type openRequest struct {
	Season int    `json:"season"`
	Name   string `json:"name"`
	Date   string `json:"date"`
}

func (a *API) openSwiss(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if !decode(w, r, &req) {
		return
	}
	a.done(w, r, a.store.OpenSwiss(r.Context(), req.Season, req.Name, req.Date))
}

func (a *API) openFinals(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if !decode(w, r, &req) {
		return
	}
	a.done(w, r, a.store.OpenFinals(r.Context(), req.Season, req.Name, req.Date))
}

func (a *API) endEvent(w http.ResponseWriter, r *http.Request) {
	a.done(w, r, a.store.EndEvent(r.Context()))
}

func (a *API) backup(w http.ResponseWriter, r *http.Request) {
	a.done(w, r, a.store.Backup(r.Context()))
}

func (a *API) nextRound(w http.ResponseWriter, r *http.Request) {
	a.done(w, r, a.store.NextRound(r.Context()))
}

func (a *API) undoRound(w http.ResponseWriter, r *http.Request) {
	a.done(w, r, a.store.UndoRound(r.Context()))
}

func (a *API) join(w http.ResponseWriter, r *http.Request) {
	var req tournament.JoinRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := actor(r, req.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	req.ID = id
	a.done(w, r, a.store.Join(r.Context(), req))
}

type playerRequest struct {
	ID string `json:"id"`
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := actor(r, req.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.done(w, r, a.store.Withdraw(r.Context(), id))
}

type homesRequest struct {
	ID    string    `json:"id"`
	Homes [3]string `json:"homes"`
}

func (a *API) updateHomes(w http.ResponseWriter, r *http.Request) {
	var req homesRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := actor(r, req.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.done(w, r, a.store.UpdateHomes(r.Context(), id, req.Homes))
}
