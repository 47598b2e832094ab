//go:build integration

package migrate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"stalmer/internal/compiler"
	"stalmer/internal/gen/backend"
	"stalmer/internal/ir"
)

func TestApply_Postgres(t *testing.T) {
	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("shop"),
		postgres.WithUsername("shop"),
		postgres.WithPassword("shop"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	app, err := compiler.Compile("shop.dsl", shop, compiler.Options{})
	require.NoError(t, err)
	ddl, err := backend.DDL(app, ir.PostgreSQL)
	require.NoError(t, err)

	first, err := Apply(ctx, ir.PostgreSQL, dsn, ddl)
	require.NoError(t, err)
	assert.Zero(t, first.Skipped)

	// повторный прогон: типы и внешние ключи уже есть
	second, err := Apply(ctx, ir.PostgreSQL, dsn, ddl)
	require.NoError(t, err)
	assert.Positive(t, second.Skipped)

	db, err := Open(ctx, ir.PostgreSQL, dsn)
	require.NoError(t, err)
	defer db.Close()

	var tables []string
	require.NoError(t, db.SelectContext(ctx, &tables,
		`select table_name from information_schema.tables where table_schema = 'public' order by table_name`))
	assert.Equal(t, []string{"orders", "users"}, tables)
}
