package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jason-s-yu/tourney/internal/bracket"
	"github.com/jason-s-yu/tourney/internal/models"
)

type eventView struct {
	Event     models.Event       `json:"event"`
	Players   []models.Player    `json:"players"`
	Selection *bracket.Selection `json:"selection,omitempty"`
}

func (a *API) getEvent(w http.ResponseWriter, r *http.Request) {
	if !a.store.IsRunning() {
		http.Error(w, "no event is running", http.StatusNotFound)
		return
	}
	v := eventView{Event: a.store.Event(), Players: a.store.Players()}
	if sel, ok := a.store.PendingSelection(); ok {
		v.Selection = &sel
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) getStandings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.store.Standings())
}

func (a *API) getSeeding(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.store.Seeding())
}

func (a *API) getMatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.store.GetAllMatches())
}

func (a *API) getMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	m, found := a.store.GetMatch(id)
	if !found {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) getCurrentMatch(w http.ResponseWriter, r *http.Request) {
	m, found := a.store.GetCurrentMatch(chi.URLParam(r, "id"))
	if !found {
		http.Error(w, "no match in play", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
