//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/i474232898/contact-manager/internal/contacts"
)

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "contacts",
				"POSTGRES_PASSWORD": "contacts",
				"POSTGRES_DB":       "contacts",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://contacts:contacts@%s:%s/contacts?sslmode=disable", host, port.Port())

	require.NoError(t, Migrate(ctx, dsn, zap.NewNop()))

	// A second run must be a no-op.
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	require.NoError(t, migrateDB(ctx, db, zap.NewNop()))
	require.NoError(t, db.Close())

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestIntegration_ContactLifecycle(t *testing.T) {
	pool := setupDB(t)
	svc := contacts.NewService(New(pool), zap.NewNop())
	ctx := context.Background()

	created, _, err := svc.SeedStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, created)

	statuses, err := svc.ListStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 4)
	newStatus := statuses[slicesIndex(statuses, "new")]

	in := contacts.ContactInput{
		FirstName: "john", LastName: "doe", PhoneNumber: "+48123456789",
		Email: "John@X.com", City: "Warsaw", StatusID: newStatus.ID,
	}
	c, err := svc.CreateContact(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "new", c.StatusName)
	assert.Equal(t, "john@x.com", c.Email)

	dup := in
	dup.PhoneNumber = "+48987654321"
	dup.Email = "JOHN@x.com"
	_, err = svc.CreateContact(ctx, dup)
	assert.ErrorIs(t, err, contacts.ErrValidation)

	page, err := svc.ListContacts(ctx, contacts.Filter{Search: "WARS", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	assert.ErrorIs(t, svc.DeleteStatus(ctx, newStatus.ID), contacts.ErrProtected)
	require.NoError(t, svc.DeleteContact(ctx, c.ID))
	require.NoError(t, svc.DeleteStatus(ctx, newStatus.ID))
}

func slicesIndex(statuses []contacts.Status, name string) int {
	for i, st := range statuses {
		if st.Name == name {
			return i
		}
	}
	return -1
}
