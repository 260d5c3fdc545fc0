// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gatehouse/gatehouse/internal/auth"
)

const (
	flashCookieName = "gatehouse_flash"
	stateCookieName = "gatehouse_oauth_state"
	stateTTL        = 10 * time.Minute
	stateBytes      = 32
)

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, session *auth.WebSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	s.expireCookie(w, s.cookieName, "/")
}

func (s *Server) sessionToken(r *http.Request) string {
	c, err := r.Cookie(s.cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// setFlash stores a one-shot message shown on the next rendered page.
func (s *Server) setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(msg)),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash returns and clears the pending flash message.
func (s *Server) takeFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return ""
	}
	s.expireCookie(w, flashCookieName, "/")
	msg, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return ""
	}
	return string(msg)
}

// newState issues the OAuth state value and pins it to the browser.
func (s *Server) newState(w http.ResponseWriter) (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// checkState consumes the state cookie and compares it to the callback's
// state parameter.
func (s *Server) checkState(w http.ResponseWriter, r *http.Request) bool {
	c, err := r.Cookie(stateCookieName)
	if err != nil || c.Value == "" {
		return false
	}
	s.expireCookie(w, stateCookieName, "/auth/")
	got := r.URL.Query().Get("state")
	return subtle.ConstantTimeCompare([]byte(got), []byte(c.Value)) == 1
}

func (s *Server) expireCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
