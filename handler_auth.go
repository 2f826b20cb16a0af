package main

import (
	"net/http"
	"time"

	"planta/internal/auth"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}

	lifetime := time.Duration(cfg.SessionHours) * time.Hour
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	user, token, err := auth.Login(mainDB, req.Username, req.Password, lifetime)
	if err != nil {
		if err == auth.ErrInvalidCredentials {
			jsonErr(w, "Invalid username or password", 401)
			return
		}
		jsonErr(w, err.Error(), 403)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(lifetime),
	})
	sink.Record("auth", user.Username, user.Username, "login", user.Username+" inició sesión")
	jsonResp(w, user)
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		auth.Logout(mainDB, cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:    auth.SessionCookie,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
	})
	jsonResp(w, map[string]string{"status": "ok"})
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	user := currentUser(r)
	if user == nil {
		jsonErr(w, "Unauthorized", 401)
		return
	}
	jsonResp(w, user)
}
