// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

//go:build integration

package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gatehouse/gatehouse/internal/store"
)

var _ = Describe("Migrator against PostgreSQL", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("gatehouse_test"),
			postgres.WithUsername("gatehouse"),
			postgres.WithPassword("gatehouse"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2)),
		)
		Expect(err).NotTo(HaveOccurred())
		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if container != nil {
			Expect(container.Terminate(ctx)).To(Succeed())
		}
	})

	It("walks the full migration cycle", func() {
		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer migrator.Close()

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())

		Expect(migrator.Up()).To(Succeed())
		latest, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(latest).To(Equal(uint(3)))

		Expect(migrator.Steps(-1)).To(Succeed())
		version, _, _ = migrator.Version()
		Expect(version).To(Equal(latest - 1))

		Expect(migrator.Steps(1)).To(Succeed())
		Expect(migrator.Down()).To(Succeed())
		version, _, _ = migrator.Version()
		Expect(version).To(BeZero())
	})

	It("opens a pool and enforces external ID uniqueness", func() {
		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err := store.Open(ctx, connStr)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		_, err = pool.Exec(ctx, `INSERT INTO users (id, slack_id) VALUES ('01J00000000000000000000001', 'U1')`)
		Expect(err).NotTo(HaveOccurred())
		_, err = pool.Exec(ctx, `INSERT INTO users (id, slack_id) VALUES ('01J00000000000000000000002', 'U1')`)
		Expect(err).To(HaveOccurred())
	})
})
