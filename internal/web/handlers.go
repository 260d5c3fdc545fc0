// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/rooms"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	s.render(w, r, http.StatusOK, pageIndex, pageData{
		Principal: p,
		Providers: s.providers.Names(),
	})
}

func (s *Server) handleSignupForm(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	s.render(w, r, http.StatusOK, pageSignup, pageData{Principal: p})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, pageSignup, pageData{Principal: p, Error: "Invalid form"})
		return
	}
	username := r.PostForm.Get("username")

	_, err := s.registrar.Signup(r.Context(), username, r.PostForm.Get("password"))
	switch {
	case err == nil:
		s.setFlash(w, "Account created. You can log in now.")
		redirect(w, r, "/")
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, auth.ErrUsernameTaken):
		s.render(w, r, http.StatusBadRequest, pageSignup, pageData{
			Principal: p,
			Username:  username,
			Error:     oops.GetPublic(err, "Invalid signup"),
		})
	default:
		s.serverError(w, r, "signup", err)
	}
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	s.render(w, r, http.StatusOK, pageLogin, pageData{Principal: p})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.setFlash(w, auth.InvalidCredentialsReason)
		redirect(w, r, "/login")
		return
	}
	cred := auth.Credential{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
	}
	s.completeLogin(w, r, auth.StrategyLocal, cred, "/rooms", "/login")
}

// completeLogin runs strategy and, on success, replaces any previous session
// with the new one.
func (s *Server) completeLogin(w http.ResponseWriter, r *http.Request, strategy string, cred auth.Credential, success, failure string) {
	result, err := s.authn.Login(r.Context(), strategy, cred, sessionMeta(r))
	if err != nil {
		s.serverError(w, r, "login", err)
		return
	}
	if !result.Succeeded() {
		s.setFlash(w, result.Reason)
		redirect(w, r, failure)
		return
	}

	if old := s.sessionToken(r); old != "" {
		if err := s.authn.Logout(r.Context(), old); err != nil {
			s.logError(r, "destroy previous session", err)
		}
	}
	s.setSessionCookie(w, result.Token, result.Session)
	redirect(w, r, success)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.authn.Logout(r.Context(), s.sessionToken(r)); err != nil {
		s.serverError(w, r, "logout", err)
		return
	}
	s.clearSessionCookie(w)
	redirect(w, r, "/login")
}

func (s *Server) handlePrivate(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	s.render(w, r, http.StatusOK, pagePrivate, pageData{Principal: p})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	list, err := s.rooms.ListByOwner(r.Context(), p.UserID)
	if err != nil {
		s.serverError(w, r, "list rooms", err)
		return
	}
	s.render(w, r, http.StatusOK, pageRooms, pageData{Principal: p, Rooms: list})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, pageRooms, pageData{Principal: p, Error: "Invalid form"})
		return
	}
	name := r.PostForm.Get("name")
	description := r.PostForm.Get("description")

	_, err := s.rooms.Create(r.Context(), p.UserID, name, description)
	if errors.Is(err, auth.ErrInvalidInput) {
		list, listErr := s.rooms.ListByOwner(r.Context(), p.UserID)
		if listErr != nil {
			s.serverError(w, r, "list rooms", listErr)
			return
		}
		s.render(w, r, http.StatusBadRequest, pageRooms, pageData{
			Principal:   p,
			Rooms:       list,
			Name:        name,
			Description: description,
			Error:       oops.GetPublic(err, "Invalid room"),
		})
		return
	}
	if err != nil {
		s.serverError(w, r, "create room", err)
		return
	}
	redirect(w, r, "/rooms")
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request, p *auth.Principal, roomID ulid.ULID) {
	// A concurrent delete already did the work.
	if err := s.rooms.Delete(r.Context(), roomID); err != nil && !rooms.IsNotFound(err) {
		s.serverError(w, r, "delete room", err)
		return
	}
	s.setFlash(w, "Room deleted")
	redirect(w, r, "/rooms")
}

func (s *Server) handleAllRooms(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	list, err := s.rooms.ListAll(r.Context())
	if err != nil {
		s.serverError(w, r, "list all rooms", err)
		return
	}
	s.render(w, r, http.StatusOK, pageRooms, pageData{Principal: p, Rooms: list, All: true})
}

func (s *Server) handleProviderStart(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.providers.Get(mux.Vars(r)["provider"])
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	state, err := s.newState(w)
	if err != nil {
		s.serverError(w, r, "generate oauth state", err)
		return
	}
	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleProviderCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.providers.Get(mux.Vars(r)["provider"])
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	name := provider.Name()
	failure, ok := failureRoutes[name]
	if !ok {
		failure = "/login"
	}

	if !s.checkState(w, r) {
		s.render(w, r, http.StatusBadRequest, pageError, pageData{
			Status:  http.StatusBadRequest,
			Message: "Login request expired or was tampered with",
		})
		return
	}

	q := r.URL.Query()
	if denied := q.Get("error"); denied != "" {
		s.logger.InfoContext(r.Context(), "provider declined login",
			"provider", string(name),
			"error", denied)
		redirect(w, r, failure)
		return
	}
	code := q.Get("code")
	if code == "" {
		redirect(w, r, failure)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.providerTimeout)
	defer cancel()
	assertion, err := provider.Exchange(ctx, code)
	if err != nil {
		s.serverError(w, r, "provider exchange", err)
		return
	}

	s.completeLogin(w, r, string(name), auth.Credential{Assertion: assertion}, "/private", failure)
}
