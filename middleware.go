package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"planta/internal/auth"
	"planta/internal/models"
)

type contextKey string

const ctxUser contextKey = "user"

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" || path == "/auth/login" || path == "/auth/logout" {
			next.ServeHTTP(w, r)
			return
		}

		user := auth.UserForRequest(mainDB, r)
		if user == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(401)
			json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized", "code": "UNAUTHORIZED"})
			return
		}

		// Sliding window: extend session expiry on each authenticated request.
		if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
			lifetime := time.Duration(cfg.SessionHours) * time.Hour
			auth.ExtendSession(mainDB, cookie.Value, lifetime)
			http.SetCookie(w, &http.Cookie{
				Name:     auth.SessionCookie,
				Value:    cookie.Value,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Expires:  time.Now().Add(lifetime),
			})
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUser, user)))
	})
}

// currentUser returns the authenticated user, falling back to a session
// lookup for handlers invoked directly in tests.
func currentUser(r *http.Request) *models.User {
	if u, ok := r.Context().Value(ctxUser).(*models.User); ok {
		return u
	}
	return auth.UserForRequest(mainDB, r)
}

// actorName is the display name stamped on workflow entities and history.
func actorName(r *http.Request) string {
	u := currentUser(r)
	if u == nil {
		return "system"
	}
	if strings.TrimSpace(u.DisplayName) != "" {
		return u.DisplayName
	}
	return u.Username
}

func requireRole(w http.ResponseWriter, r *http.Request, roles ...string) bool {
	u := currentUser(r)
	if u == nil {
		jsonErr(w, "Unauthorized", 401)
		return false
	}
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	jsonErr(w, "Forbidden", 403)
	return false
}
