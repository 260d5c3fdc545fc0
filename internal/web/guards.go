// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// principalHandler receives the restored principal, nil when anonymous.
type principalHandler func(w http.ResponseWriter, r *http.Request, p *auth.Principal)

// roomHandler additionally receives the room named by the {id} route variable.
type roomHandler func(w http.ResponseWriter, r *http.Request, p *auth.Principal, roomID ulid.ULID)

// restore reads the session cookie. A cookie that no longer maps to a
// session is cleared.
func (s *Server) restore(w http.ResponseWriter, r *http.Request) (*auth.Principal, error) {
	token := s.sessionToken(r)
	if token == "" {
		return nil, nil
	}
	p, err := s.sessions.Restore(r.Context(), token)
	if err != nil {
		return nil, err
	}
	if p == nil {
		s.clearSessionCookie(w)
	}
	return p, nil
}

func (s *Server) withPrincipal(next principalHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.restore(w, r)
		if err != nil {
			s.serverError(w, r, "restore session", err)
			return
		}
		next(w, r, p)
	}
}

func (s *Server) requireAuth(next principalHandler) http.HandlerFunc {
	return s.withPrincipal(func(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
		if !s.gate.IsAuthenticated(p) {
			redirect(w, r, "/login")
			return
		}
		next(w, r, p)
	})
}

func (s *Server) requireRole(role auth.Role, next principalHandler) http.HandlerFunc {
	return s.withPrincipal(func(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
		if !s.gate.HasRole(p, role) {
			redirect(w, r, "/login")
			return
		}
		next(w, r, p)
	})
}

// requireRoomOwner admits the room's owner and any ADMIN. A malformed or
// unknown room id is treated as a denial.
func (s *Server) requireRoomOwner(next roomHandler) http.HandlerFunc {
	return s.withPrincipal(func(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
		id, err := ulid.ParseStrict(mux.Vars(r)["id"])
		if err != nil {
			redirect(w, r, "/login")
			return
		}
		ok, err := s.gate.CheckOwnership(r.Context(), p, s.rooms.OwnerOf, id)
		if err != nil {
			s.serverError(w, r, "check room ownership", err)
			return
		}
		if !ok {
			redirect(w, r, "/login")
			return
		}
		next(w, r, p, id)
	})
}

// sameOrigin refuses state-changing requests a browser sent on behalf of
// another site. Requests carrying none of Sec-Fetch-Site, Origin or Referer
// come from non-browser clients and pass.
func (s *Server) sameOrigin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !fromSameOrigin(r) {
			s.logger.WarnContext(r.Context(), "cross-site request refused",
				"method", r.Method, "path", r.URL.Path,
				"origin", r.Header.Get("Origin"), "fetch_site", r.Header.Get("Sec-Fetch-Site"))
			s.render(w, r, http.StatusForbidden, pageError, pageData{
				Status:  http.StatusForbidden,
				Message: "Cross-site request refused",
			})
			return
		}
		next(w, r)
	}
}

func fromSameOrigin(r *http.Request) bool {
	switch r.Header.Get("Sec-Fetch-Site") {
	case "same-origin", "none":
		return true
	case "":
	default:
		return false
	}
	if origin := r.Header.Get("Origin"); origin != "" {
		return sameHost(origin, r.Host)
	}
	if referer := r.Header.Get("Referer"); referer != "" {
		return sameHost(referer, r.Host)
	}
	return true
}

func sameHost(rawURL, host string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Host != "" && strings.EqualFold(u.Host, host)
}
