// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/rooms"
)

var _ = Describe("Local accounts", func() {
	var (
		gw  *gateway
		web *browser
	)

	BeforeEach(func() {
		gw = newGateway()
		web = gw.newBrowser()
	})

	AfterEach(func() {
		gw.Close()
	})

	Describe("signing up", func() {
		It("creates the account and redirects home without logging in", func() {
			resp := web.signup("ada", "pw1")
			Expect(resp.Status).To(Equal(http.StatusSeeOther))
			Expect(resp.Location).To(Equal("/"))
			Expect(web.sessionCookie()).To(BeNil())
			Expect(gw.users.Count()).To(Equal(1))

			home := web.get("/")
			Expect(home.Body).To(ContainSubstring("Account created"))
		})

		It("rejects a missing password inline", func() {
			resp := web.signup("ada", "")
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Body).To(ContainSubstring("Indicate username and password"))
			Expect(resp.Body).To(ContainSubstring(`value="ada"`))
			Expect(gw.users.Count()).To(Equal(0))
		})

		It("rejects a whitespace-only username inline", func() {
			resp := web.signup("   ", "pw1")
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Body).To(ContainSubstring("Indicate username and password"))
		})

		It("rejects a password longer than bcrypt accepts inline", func() {
			resp := web.signup("bob", strings.Repeat("a", auth.MaxPasswordLength+1))
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Body).To(ContainSubstring("Password must be at most 72 bytes"))
			Expect(resp.Body).To(ContainSubstring(`value="bob"`))
			Expect(gw.users.Count()).To(Equal(0))
		})

		It("rejects a taken username regardless of case", func() {
			Expect(web.signup("ada", "pw1").Status).To(Equal(http.StatusSeeOther))

			resp := web.signup("ADA", "pw2")
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Body).To(ContainSubstring("The username already exists"))
			Expect(gw.users.Count()).To(Equal(1))
		})
	})

	Describe("logging in", func() {
		BeforeEach(func() {
			Expect(web.signup("ada", "pw1").Status).To(Equal(http.StatusSeeOther))
		})

		It("establishes a session and lands on rooms", func() {
			resp := web.login("ada", "pw1")
			Expect(resp.Status).To(Equal(http.StatusSeeOther))
			Expect(resp.Location).To(Equal("/rooms"))
			Expect(web.sessionCookie()).NotTo(BeNil())
			Expect(gw.sessions.Count()).To(Equal(1))

			rooms := web.get("/rooms")
			Expect(rooms.Status).To(Equal(http.StatusOK))
			Expect(rooms.Body).To(ContainSubstring("ada"))
		})

		It("flashes the same reason for a wrong password and an unknown user", func() {
			for _, attempt := range [][2]string{{"ada", "wrong"}, {"nobody", "pw1"}} {
				resp := web.login(attempt[0], attempt[1])
				Expect(resp.Status).To(Equal(http.StatusSeeOther))
				Expect(resp.Location).To(Equal("/login"))

				form := web.get("/login")
				Expect(form.Body).To(ContainSubstring(auth.InvalidCredentialsReason))
			}
			Expect(web.sessionCookie()).To(BeNil())
			Expect(gw.sessions.Count()).To(Equal(0))
		})

		It("shows a flash message only once", func() {
			web.login("ada", "wrong")
			Expect(web.get("/login").Body).To(ContainSubstring(auth.InvalidCredentialsReason))
			Expect(web.get("/login").Body).NotTo(ContainSubstring(auth.InvalidCredentialsReason))
		})

		It("replaces the previous session on a second login", func() {
			web.login("ada", "pw1")
			first := web.sessionCookie().Value

			web.login("ada", "pw1")
			Expect(web.sessionCookie().Value).NotTo(Equal(first))
			Expect(gw.sessions.Count()).To(Equal(1))
		})
	})

	Describe("logging out", func() {
		It("destroys the session and clears the cookie", func() {
			web.signup("ada", "pw1")
			web.login("ada", "pw1")

			resp := web.get("/logout")
			Expect(resp.Status).To(Equal(http.StatusSeeOther))
			Expect(resp.Location).To(Equal("/login"))
			Expect(web.sessionCookie()).To(BeNil())
			Expect(gw.sessions.Count()).To(Equal(0))

			Expect(web.get("/rooms").Location).To(Equal("/login"))
		})

		It("does not honour the old cookie after logout", func() {
			web.signup("ada", "pw1")
			web.login("ada", "pw1")
			old := web.sessionCookie().Value

			Expect(web.get("/logout").Location).To(Equal("/login"))

			web.setSessionCookie(old)
			resp := web.get("/rooms")
			Expect(resp.Status).To(Equal(http.StatusSeeOther))
			Expect(resp.Location).To(Equal("/login"))
			Expect(web.get("/private").Location).To(Equal("/login"))
		})

		It("is harmless when not logged in", func() {
			resp := web.get("/logout")
			Expect(resp.Status).To(Equal(http.StatusSeeOther))
			Expect(resp.Location).To(Equal("/login"))
		})
	})

	It("treats an unknown session cookie as anonymous and clears it", func() {
		web.setSessionCookie("deadbeef")

		resp := web.get("/private")
		Expect(resp.Status).To(Equal(http.StatusSeeOther))
		Expect(resp.Location).To(Equal("/login"))
		Expect(web.sessionCookie()).To(BeNil())
	})
})

var _ = Describe("Access control", func() {
	var (
		gw    *gateway
		ada   *browser
		bob   *browser
		admin *browser
		anon  *browser
		ctx   context.Context
	)

	ownerRooms := func(username string) []*rooms.Room {
		u, err := gw.users.GetByUsername(ctx, username)
		Expect(err).NotTo(HaveOccurred())
		list, err := gw.rooms.ListByOwner(ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		return list
	}

	BeforeEach(func() {
		ctx = context.Background()
		gw = newGateway()
		ada, bob, admin, anon = gw.newBrowser(), gw.newBrowser(), gw.newBrowser(), gw.newBrowser()

		ada.signup("ada", "pw1")
		bob.signup("bob", "pw2")
		_, err := gw.registrar.SignupWithRole(ctx, "root", "pw3", auth.RoleAdmin)
		Expect(err).NotTo(HaveOccurred())

		Expect(ada.login("ada", "pw1").Location).To(Equal("/rooms"))
		Expect(bob.login("bob", "pw2").Location).To(Equal("/rooms"))
		Expect(admin.login("root", "pw3").Location).To(Equal("/rooms"))

		resp := ada.post("/rooms", url.Values{"name": {"Library"}, "description": {"Quiet"}})
		Expect(resp.Status).To(Equal(http.StatusSeeOther))
		Expect(resp.Location).To(Equal("/rooms"))
	})

	AfterEach(func() {
		gw.Close()
	})

	DescribeTable("anonymous requests are sent to login",
		func(path string) {
			resp := anon.get(path)
			Expect(resp.Status).To(Equal(http.StatusSeeOther))
			Expect(resp.Location).To(Equal("/login"))
		},
		Entry("private page", "/private"),
		Entry("own rooms", "/rooms"),
		Entry("all rooms", "/rooms/allrooms"),
	)

	It("lists only the caller's rooms", func() {
		Expect(ada.get("/rooms").Body).To(ContainSubstring("Library"))
		Expect(bob.get("/rooms").Body).NotTo(ContainSubstring("Library"))
	})

	It("re-renders the form for a blank room name", func() {
		resp := ada.post("/rooms", url.Values{"name": {"  "}, "description": {"kept"}})
		Expect(resp.Status).To(Equal(http.StatusBadRequest))
		Expect(resp.Body).To(ContainSubstring("Indicate a room name"))
		Expect(resp.Body).To(ContainSubstring(`value="kept"`))
		Expect(ownerRooms("ada")).To(HaveLen(1))
	})

	It("lets only ADMIN list every room", func() {
		Expect(ada.get("/rooms/allrooms").Location).To(Equal("/login"))

		resp := admin.get("/rooms/allrooms")
		Expect(resp.Status).To(Equal(http.StatusOK))
		Expect(resp.Body).To(ContainSubstring("Library"))
	})

	It("denies deleting another user's room", func() {
		id := ownerRooms("ada")[0].ID.String()

		resp := bob.post("/rooms/"+id+"/delete", nil)
		Expect(resp.Status).To(Equal(http.StatusSeeOther))
		Expect(resp.Location).To(Equal("/login"))

		resp = bob.get("/rooms/delete/" + id)
		Expect(resp.Location).To(Equal("/login"))
		Expect(ownerRooms("ada")).To(HaveLen(1))
	})

	It("lets the owner delete a room", func() {
		id := ownerRooms("ada")[0].ID.String()

		resp := ada.post("/rooms/"+id+"/delete", nil)
		Expect(resp.Status).To(Equal(http.StatusSeeOther))
		Expect(resp.Location).To(Equal("/rooms"))
		Expect(ownerRooms("ada")).To(BeEmpty())
	})

	It("lets an ADMIN delete any room", func() {
		id := ownerRooms("ada")[0].ID.String()

		resp := admin.get("/rooms/delete/" + id)
		Expect(resp.Location).To(Equal("/rooms"))
		Expect(ownerRooms("ada")).To(BeEmpty())
	})

	It("denies malformed and unknown room ids", func() {
		Expect(ada.get("/rooms/delete/not-a-ulid").Location).To(Equal("/login"))
		Expect(admin.get("/rooms/delete/01ARZ3NDEKTSV4RRFFQ69G5FAV").Location).To(Equal("/login"))
	})

	Context("when another site triggers the request", func() {
		send := func(b *browser, method, path string, header http.Header) page {
			req, err := http.NewRequest(method, gw.server.URL+path, nil)
			Expect(err).NotTo(HaveOccurred())
			for k, v := range header {
				req.Header[k] = v
			}
			return b.do(req)
		}

		It("refuses a cross-site delete link", func() {
			id := ownerRooms("ada")[0].ID.String()

			resp := send(ada, http.MethodGet, "/rooms/delete/"+id, http.Header{"Sec-Fetch-Site": {"cross-site"}})
			Expect(resp.Status).To(Equal(http.StatusForbidden))
			Expect(resp.Body).To(ContainSubstring("Cross-site request refused"))
			Expect(ownerRooms("ada")).To(HaveLen(1))
		})

		It("refuses a delete posted from a foreign origin", func() {
			id := ownerRooms("ada")[0].ID.String()

			resp := send(ada, http.MethodPost, "/rooms/"+id+"/delete", http.Header{"Origin": {"https://evil.example"}})
			Expect(resp.Status).To(Equal(http.StatusForbidden))
			Expect(ownerRooms("ada")).To(HaveLen(1))
		})

		It("refuses a delete linked from a foreign page", func() {
			id := ownerRooms("ada")[0].ID.String()

			resp := send(ada, http.MethodGet, "/rooms/delete/"+id, http.Header{"Referer": {"https://evil.example/page"}})
			Expect(resp.Status).To(Equal(http.StatusForbidden))
			Expect(ownerRooms("ada")).To(HaveLen(1))
		})

		It("still honours a same-origin delete", func() {
			id := ownerRooms("ada")[0].ID.String()

			resp := send(ada, http.MethodGet, "/rooms/delete/"+id, http.Header{
				"Sec-Fetch-Site": {"same-origin"},
				"Referer":        {gw.server.URL + "/rooms"},
			})
			Expect(resp.Location).To(Equal("/rooms"))
			Expect(ownerRooms("ada")).To(BeEmpty())
		})
	})
})

var _ = Describe("Provider login", func() {
	var (
		gw  *gateway
		web *browser
	)

	BeforeEach(func() {
		gw = newGateway()
		web = gw.newBrowser()
	})

	AfterEach(func() {
		gw.Close()
	})

	It("offers the configured providers on the entry page", func() {
		body := web.get("/").Body
		Expect(body).To(ContainSubstring(`href="/auth/slack"`))
		Expect(body).To(ContainSubstring(`href="/auth/outlook"`))
		Expect(body).NotTo(ContainSubstring(`href="/auth/google"`))
	})

	It("creates one user on first login and reuses it afterwards", func() {
		resp := web.providerLogin("slack", "ada-1")
		Expect(resp.Status).To(Equal(http.StatusSeeOther))
		Expect(resp.Location).To(Equal("/private"))
		Expect(gw.users.Count()).To(Equal(1))

		Expect(web.get("/logout").Location).To(Equal("/login"))

		resp = web.providerLogin("slack", "ada-2")
		Expect(resp.Location).To(Equal("/private"))
		Expect(gw.users.Count()).To(Equal(1))

		// Slack refreshes the display name on repeat logins.
		Expect(web.get("/private").Body).To(ContainSubstring("Welcome, Ada Lovelace"))
	})

	It("rejects a callback whose state does not match", func() {
		web.get("/auth/slack")

		resp := web.get("/auth/slack/callback?state=forged&code=ada-1")
		Expect(resp.Status).To(Equal(http.StatusBadRequest))
		Expect(gw.users.Count()).To(Equal(0))
	})

	It("rejects a callback without a state cookie", func() {
		resp := web.get("/auth/slack/callback?state=x&code=ada-1")
		Expect(resp.Status).To(Equal(http.StatusBadRequest))
	})

	DescribeTable("a declined authorization goes to the provider's failure route",
		func(provider, failure string) {
			start := web.get("/auth/" + provider)
			target, err := url.Parse(start.Location)
			Expect(err).NotTo(HaveOccurred())

			q := url.Values{"state": {target.Query().Get("state")}, "error": {"access_denied"}}
			resp := web.get("/auth/" + provider + "/callback?" + q.Encode())
			Expect(resp.Status).To(Equal(http.StatusSeeOther))
			Expect(resp.Location).To(Equal(failure))
			Expect(web.sessionCookie()).To(BeNil())
		},
		Entry("slack", "slack", "/"),
		Entry("outlook", "outlook", "/login"),
	)

	It("answers a failed code exchange with the generic error page", func() {
		resp := web.providerLogin("outlook", "unknown-code")
		Expect(resp.Status).To(Equal(http.StatusInternalServerError))
		Expect(resp.Body).To(ContainSubstring("Something went wrong"))
		Expect(resp.Body).NotTo(ContainSubstring("token endpoint"))
		Expect(gw.users.Count()).To(Equal(0))
	})

	It("returns 404 for a provider without a strategy", func() {
		Expect(web.get("/auth/amazon").Status).To(Equal(http.StatusNotFound))
		Expect(web.get("/auth/amazon/callback?code=x").Status).To(Equal(http.StatusNotFound))
	})
})
