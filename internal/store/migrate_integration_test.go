//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package store_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/fashionhall/storefront/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var migrator *store.Migrator

	BeforeAll(func() {
		var err error
		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			Expect(migrator.Close()).To(Succeed())
		})
	})

	It("starts at version zero", func() {
		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(BeZero())
		Expect(st.Dirty).To(BeFalse())
		Expect(st.Pending).To(Equal([]uint{1, 2}))
	})

	It("applies every migration", func() {
		Expect(migrator.Up()).To(Succeed())

		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(Equal(uint(2)))
		Expect(st.Pending).To(BeEmpty())
	})

	It("is idempotent", func() {
		Expect(migrator.Up()).To(Succeed())
	})

	It("enforces unique emails", func(ctx SpecContext) {
		pool, err := store.Connect(ctx, connStr, store.ConnectOptions{})
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		insert := `INSERT INTO users (email, password_hash, name) VALUES ($1, $2, $3)`
		_, err = pool.Exec(ctx, insert, "dup@example.com", "digest", "Dup")
		Expect(err).NotTo(HaveOccurred())
		_, err = pool.Exec(ctx, insert, "dup@example.com", "digest", "Dup")
		Expect(err).To(MatchError(ContainSubstring("users_email_key")))
	})

	It("bumps updated_at on update", func(ctx SpecContext) {
		pool, err := store.Connect(ctx, connStr, store.ConnectOptions{})
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		var created, updated time.Time
		err = pool.QueryRow(ctx,
			`INSERT INTO users (email, password_hash, name) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
			"touch@example.com", "digest", "Touch").Scan(&created, &updated)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated).To(Equal(created))

		time.Sleep(10 * time.Millisecond)
		err = pool.QueryRow(ctx,
			`UPDATE users SET name = $1 WHERE email = $2 RETURNING updated_at`,
			"Touched", "touch@example.com").Scan(&updated)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated).To(BeTemporally(">", created))
	})

	It("rolls back one step at a time", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
	})

	It("rolls back everything", func() {
		Expect(migrator.Down()).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
	})

	It("rejects negative force", func() {
		Expect(migrator.Force(-1)).NotTo(Succeed())
	})
})

var _ = Describe("Connect", func() {
	It("returns a pool that answers pings", func(ctx SpecContext) {
		pool, err := store.Connect(ctx, connStr, store.ConnectOptions{MaxRetries: 1})
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()
		Expect(pool.Ping(ctx)).To(Succeed())
	})
})
