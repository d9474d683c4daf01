package level

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halolabs/memberd/internal/apiserver/database"
	"github.com/halolabs/memberd/internal/common/config"
)

func newTestResolver(t *testing.T) (*Resolver, database.Database) {
	t.Helper()
	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return NewResolver(db), db
}

func TestResolve_PicksHighestQualifyingRank(t *testing.T) {
	resolver, db := newTestResolver(t)
	ctx := context.Background()

	for _, lvl := range []*database.MemberLevel{
		{LevelName: "Bronze", LevelValue: 1, MinPoints: 0, Discount: 1, Status: database.StatusActive},
		{LevelName: "Silver", LevelValue: 2, MinPoints: 100, Discount: 0.95, Status: database.StatusActive},
		{LevelName: "Gold", LevelValue: 3, MinPoints: 500, Discount: 0.9, Status: database.StatusActive},
	} {
		require.NoError(t, db.CreateLevel(ctx, lvl))
	}

	cases := []struct {
		points int64
		want   string
	}{
		{0, "Bronze"},
		{99, "Bronze"},
		{100, "Silver"},
		{499, "Silver"},
		{500, "Gold"},
		{100000, "Gold"},
	}
	for _, tc := range cases {
		got, err := resolver.Resolve(ctx, tc.points)
		require.NoError(t, err)
		require.NotNil(t, got, "points=%d", tc.points)
		assert.Equal(t, tc.want, got.LevelName, "points=%d", tc.points)
	}
}

func TestResolve_NoQualifyingLevel(t *testing.T) {
	resolver, db := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, db.CreateLevel(ctx, &database.MemberLevel{
		LevelName: "Silver", LevelValue: 2, MinPoints: 100, Discount: 0.95, Status: database.StatusActive,
	}))

	got, err := resolver.Resolve(ctx, 50)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolve_IgnoresInactiveLevels(t *testing.T) {
	resolver, db := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, db.CreateLevel(ctx, &database.MemberLevel{
		LevelName: "Bronze", LevelValue: 1, MinPoints: 0, Discount: 1, Status: database.StatusActive,
	}))
	require.NoError(t, db.CreateLevel(ctx, &database.MemberLevel{
		LevelName: "Retired", LevelValue: 9, MinPoints: 0, Discount: 0.5, Status: database.StatusInactive,
	}))

	got, err := resolver.Resolve(ctx, 1000)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Bronze", got.LevelName)
}
