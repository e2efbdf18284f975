//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fashionhall/storefront/internal/auth"
	"github.com/fashionhall/storefront/internal/auth/postgres"
	"github.com/fashionhall/storefront/internal/store"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("storefront_test"),
		tcpostgres.WithUsername("storefront"),
		tcpostgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres: %v\n", err)
		return 1
	}
	defer func() {
		_ = container.Terminate(ctx) //nolint:errcheck // best-effort teardown
	}()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "connection string: %v\n", err)
		return 1
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrator: %v\n", err)
		return 1
	}
	if err := migrator.Up(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		return 1
	}
	_ = migrator.Close() //nolint:errcheck // schema is applied

	testPool, err = store.Connect(ctx, connStr, store.ConnectOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		return 1
	}
	defer testPool.Close()

	return m.Run()
}

var emailSeq atomic.Int64

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, emailSeq.Add(1))
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	phone := "0912345678"
	user := &auth.User{Email: uniqueEmail("create"), PasswordHash: "digest", Name: "A", Phone: &phone}
	require.NoError(t, repo.Create(ctx, user))
	assert.Positive(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "digest", byEmail.PasswordHash)
	require.NotNil(t, byEmail.Phone)
	assert.Equal(t, phone, *byEmail.Phone)
	assert.Nil(t, byEmail.Address)

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	email := uniqueEmail("dup")
	require.NoError(t, repo.Create(ctx, &auth.User{Email: email, PasswordHash: "d", Name: "A"}))

	err := repo.Create(ctx, &auth.User{Email: email, PasswordHash: "d", Name: "B"})
	require.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestUserRepository_ConcurrentDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)
	email := uniqueEmail("race")

	var (
		wg      sync.WaitGroup
		created atomic.Int32
		taken   atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Create(ctx, &auth.User{Email: email, PasswordHash: "d", Name: "R"})
			switch {
			case err == nil:
				created.Add(1)
			case auth.KindOf(err) == auth.KindConflict:
				taken.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(7), taken.Load())
}

func TestUserRepository_EmailIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	email := uniqueEmail("case")
	require.NoError(t, repo.Create(ctx, &auth.User{Email: email, PasswordHash: "d", Name: "A"}))

	_, err := repo.GetByEmail(ctx, strings.ToUpper(email))
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo := postgres.NewUserRepository(testPool)
	_, err := repo.GetByID(context.Background(), 1<<40)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
