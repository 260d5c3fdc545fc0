// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/rooms"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	pageIndex   = "index"
	pageLogin   = "login"
	pageSignup  = "signup"
	pagePrivate = "private"
	pageRooms   = "rooms"
	pageError   = "error"
)

// pageData is the single view model every template receives.
type pageData struct {
	Principal *auth.Principal
	IsAdmin   bool
	Flash     string
	Error     string

	// Form echo.
	Username    string
	Name        string
	Description string

	Providers []auth.Provider
	Rooms     []*rooms.Room
	All       bool

	Status  int
	Message string
}

func parsePages() (map[string]*template.Template, error) {
	layout, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, oops.Code("WEB_TEMPLATE_INVALID").With("page", "layout").Wrap(err)
	}
	pages := make(map[string]*template.Template)
	for _, name := range []string{pageIndex, pageLogin, pageSignup, pagePrivate, pageRooms, pageError} {
		t, err := template.Must(layout.Clone()).ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, oops.Code("WEB_TEMPLATE_INVALID").With("page", name).Wrap(err)
		}
		pages[name] = t
	}
	return pages, nil
}

// render writes page with status. Rendering into a buffer first keeps a
// template error from producing a half-written 200.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	if data.Principal != nil {
		data.IsAdmin = data.Principal.Role == auth.RoleAdmin
	}
	if data.Flash == "" {
		data.Flash = s.takeFlash(w, r)
	}

	var buf bytes.Buffer
	if err := s.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logError(r, "render page", oops.With("page", page).Wrap(err))
		http.Error(w, genericErrorMessage, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes()) //nolint:errcheck // client may disconnect
}
