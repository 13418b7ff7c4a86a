package handlers

import (
	"net/http"

	"github.com/jason-s-yu/tourney/internal/auth"
)

type loginRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// login exchanges the operator's password for an admin token, also set as the
// auth_token cookie.
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if a.admin.ID == "" || a.admin.PasswordHash == "" || req.ID != a.admin.ID {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	ok, err := auth.ComparePasswordAndHash(req.Password, a.admin.PasswordHash)
	if err != nil {
		a.logger.WithError(err).Error("admin password hash is unusable")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if !ok {
		a.logger.WithField("remote", r.RemoteAddr).Warn("failed admin login")
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := a.signer.CreateJWT(req.ID, true)
	if err != nil {
		a.logger.WithError(err).Error("failed to sign admin token")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

type mintRequest struct {
	ID string `json:"id"`
}

// mintToken issues a player token, handed out through the chat platform.
func (a *API) mintToken(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		http.Error(w, "a player id is required", http.StatusBadRequest)
		return
	}
	token, err := a.signer.CreateJWT(req.ID, false)
	if err != nil {
		a.logger.WithError(err).Error("failed to sign player token")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}
