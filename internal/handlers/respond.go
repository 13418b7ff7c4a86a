package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jason-s-yu/tourney/internal/middleware"
	"github.com/jason-s-yu/tourney/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// fail maps a store error onto a status code. Operational failures have
// already been escalated, so the caller only learns that something broke.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case models.IsUserError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case models.IsInvariant(err):
		a.logger.WithField("path", r.URL.Path).WithError(err).Error("invariant violation")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		a.logger.WithField("path", r.URL.Path).WithError(err).Error("request failed")
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func (a *API) done(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// actor resolves who a request acts for. Players act for themselves; an admin
// may name anyone.
func actor(r *http.Request, requested string) (string, error) {
	c, _ := middleware.ClaimsFrom(r.Context())
	if requested == "" || requested == c.Subject {
		return c.Subject, nil
	}
	if !c.Admin {
		return "", models.UserErrorf("you can only act for yourself")
	}
	return requested, nil
}

// override reports whether an admin asked to bypass the player checks.
func override(r *http.Request) bool {
	c, _ := middleware.ClaimsFrom(r.Context())
	return c.Admin && r.URL.Query().Get("override") == "true"
}

func matchID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		http.Error(w, "invalid match id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
