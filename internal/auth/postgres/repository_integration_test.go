// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/postgres"
)

var _ = Describe("UserRepository", func() {
	var (
		ctx   context.Context
		users *postgres.UserRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		users = postgres.NewUserRepository(testPool)
	})

	It("round-trips a local user and finds it case-insensitively", func() {
		user, err := auth.NewLocalUser("Carol", "$2a$12$hash", auth.RoleGuest)
		Expect(err).NotTo(HaveOccurred())
		Expect(users.Create(ctx, user)).To(Succeed())

		got, err := users.GetByUsername(ctx, "carol")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(user.ID))
		Expect(got.PasswordHash).To(Equal("$2a$12$hash"))
	})

	It("rejects a second username differing only in case", func() {
		first, _ := auth.NewLocalUser("dave", "h", auth.RoleGuest)
		Expect(users.Create(ctx, first)).To(Succeed())

		second, _ := auth.NewLocalUser("DAVE", "h", auth.RoleGuest)
		Expect(users.Create(ctx, second)).To(MatchError(auth.ErrDuplicate))
	})

	It("updates the display name", func() {
		user, _ := auth.NewExternalUser(auth.ProviderSlack, "U-name")
		Expect(users.Create(ctx, user)).To(Succeed())
		Expect(users.UpdateName(ctx, user.ID, "Erin")).To(Succeed())

		got, err := users.GetByExternalID(ctx, auth.ProviderSlack, "U-name")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Name).To(Equal("Erin"))
	})

	It("resolves concurrent first logins to a single user", func() {
		resolver, err := auth.NewIdentityResolver(users)
		Expect(err).NotTo(HaveOccurred())

		const callers = 8
		ids := make(chan string, callers)
		var wg sync.WaitGroup
		for range callers {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				u, err := resolver.Resolve(ctx, auth.Assertion{Provider: auth.ProviderGoogle, ExternalID: "race-1"})
				Expect(err).NotTo(HaveOccurred())
				ids <- u.ID.String()
			}()
		}
		wg.Wait()
		close(ids)

		seen := map[string]bool{}
		for id := range ids {
			seen[id] = true
		}
		Expect(seen).To(HaveLen(1))

		var count int
		Expect(testPool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE google_id = 'race-1'`).Scan(&count)).To(Succeed())
		Expect(count).To(Equal(1))
	})
})

var _ = Describe("WebSessionRepository", func() {
	It("creates, finds, expires and deletes sessions", func() {
		ctx := context.Background()
		users := postgres.NewUserRepository(testPool)
		sessions := postgres.NewWebSessionRepository(testPool)

		user, _ := auth.NewExternalUser(auth.ProviderOutlook, "o-sess")
		Expect(users.Create(ctx, user)).To(Succeed())

		live, err := auth.NewWebSession(user.ID, "live-hash", "ua", "127.0.0.1", time.Now().Add(time.Hour))
		Expect(err).NotTo(HaveOccurred())
		stale, err := auth.NewWebSession(user.ID, "stale-hash", "ua", "127.0.0.1", time.Now().Add(-time.Minute))
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions.Create(ctx, live)).To(Succeed())
		Expect(sessions.Create(ctx, stale)).To(Succeed())

		got, err := sessions.GetByTokenHash(ctx, "live-hash")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.UserID).To(Equal(user.ID))

		n, err := sessions.DeleteExpired(ctx, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeNumerically(">=", 1))
		_, err = sessions.GetByTokenHash(ctx, "stale-hash")
		Expect(err).To(MatchError(auth.ErrNotFound))

		Expect(sessions.DeleteByUser(ctx, user.ID)).To(Succeed())
		_, err = sessions.GetByTokenHash(ctx, "live-hash")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})
