package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halolabs/memberd/internal/common/config"
)

func newTestDB(t *testing.T) Database {
	t.Helper()
	db, err := NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func strptr(s string) *string { return &s }

func seedApp(t *testing.T, db Database, chargeMode string) *App {
	t.Helper()
	app := &App{
		AppID:      "app_test",
		AppName:    "Test App",
		AppSecret:  "secret",
		LoginMode:  LoginModePassword,
		ChargeMode: chargeMode,
		Status:     StatusActive,
	}
	require.NoError(t, db.CreateApp(context.Background(), app))
	return app
}

func seedUser(t *testing.T, db Database, appID string) *User {
	t.Helper()
	user := &User{
		AppID:    appID,
		Username: strptr("alice"),
		Password: "hash",
		Status:   StatusActive,
		LevelID:  1,
	}
	require.NoError(t, db.CreateUser(context.Background(), user))
	return user
}

func TestStore_AppCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	app := seedApp(t, db, ChargeModeFree)
	assert.NotZero(t, app.ID)

	got, err := db.GetAppByAppID(ctx, "app_test")
	require.NoError(t, err)
	assert.Equal(t, "Test App", got.AppName)

	_, err = db.GetAppByAppID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	got.ChargeMode = ChargeModePaid
	require.NoError(t, db.UpdateApp(ctx, got))
	got, err = db.GetAppByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, ChargeModePaid, got.ChargeMode)

	apps, err := db.ListApps(ctx)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestStore_UserLookups(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	app := seedApp(t, db, ChargeModeFree)
	user := seedUser(t, db, app.AppID)

	byID, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", *byID.Username)

	byName, err := db.GetUserByUsername(ctx, app.AppID, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = db.GetUserByUsername(ctx, "other_app", "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	machine := &User{AppID: app.AppID, MachineCode: strptr("mc-01"), Status: StatusActive, LevelID: 1}
	require.NoError(t, db.CreateUser(ctx, machine))
	byMC, err := db.GetUserByMachineCode(ctx, app.AppID, "mc-01")
	require.NoError(t, err)
	assert.Equal(t, machine.ID, byMC.ID)

	users, total, err := db.ListUsers(ctx, UserFilter{AppID: app.AppID}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, users, 2)

	users, total, err = db.ListUsers(ctx, UserFilter{AppID: app.AppID, Keyword: "alice"}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, user.ID, users[0].ID)
}

func TestStore_HighestLevelForPoints(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	levels := []*MemberLevel{
		{LevelName: "Bronze", LevelValue: 1, MinPoints: 0, Discount: 1, Status: StatusActive},
		{LevelName: "Silver", LevelValue: 2, MinPoints: 100, Discount: 0.95, Status: StatusActive},
		{LevelName: "Gold", LevelValue: 3, MinPoints: 500, Discount: 0.9, Status: StatusActive},
		{LevelName: "Hidden", LevelValue: 4, MinPoints: 0, Discount: 0.8, Status: StatusInactive},
	}
	for _, lvl := range levels {
		require.NoError(t, db.CreateLevel(ctx, lvl))
	}

	got, err := db.HighestLevelForPoints(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "Bronze", got.LevelName)

	got, err = db.HighestLevelForPoints(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Silver", got.LevelName)

	got, err = db.HighestLevelForPoints(ctx, 9999)
	require.NoError(t, err)
	// Inactive levels never win, whatever their rank.
	assert.Equal(t, "Gold", got.LevelName)
}

func TestStore_MarkCardExpiredOnlyFlipsUnused(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	card := &RechargeCard{CardNo: "C1", CardPassword: "hash", ExpiresDays: 30, Status: CardStatusUnused}
	require.NoError(t, db.CreateCard(ctx, card))

	require.NoError(t, db.MarkCardExpired(ctx, card.ID))
	got, err := db.GetCardByNo(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, CardStatusExpired, got.Status)

	used := &RechargeCard{CardNo: "C2", CardPassword: "hash", ExpiresDays: 30, Status: CardStatusUsed}
	require.NoError(t, db.CreateCard(ctx, used))
	require.NoError(t, db.MarkCardExpired(ctx, used.ID))
	got, err = db.GetCardByNo(ctx, "C2")
	require.NoError(t, err)
	assert.Equal(t, CardStatusUsed, got.Status)
}

func TestStore_TransactionRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	app := seedApp(t, db, ChargeModeFree)
	user := seedUser(t, db, app.AppID)

	boom := assert.AnError
	err := db.Transaction(ctx, func(ctx context.Context) error {
		locked, err := db.GetUserByIDForUpdate(ctx, user.ID)
		require.NoError(t, err)
		locked.Points = 500
		require.NoError(t, db.UpdateUser(ctx, locked))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.Points)
}

func TestStore_UpsertSystemConfig(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertSystemConfig(ctx, &SystemConfig{ConfigKey: "sms_enabled", ConfigValue: "false", ConfigType: "boolean"}))
	require.NoError(t, db.UpsertSystemConfig(ctx, &SystemConfig{ConfigKey: "sms_enabled", ConfigValue: "true", ConfigType: "boolean"}))

	rows, err := db.ListSystemConfigs(ctx, "sms_enabled")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "true", rows[0].ConfigValue)
}

func TestStore_ListPointRecordsPaginated(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	app := seedApp(t, db, ChargeModeFree)
	user := seedUser(t, db, app.AppID)

	for i := 0; i < 25; i++ {
		require.NoError(t, db.CreatePointRecord(ctx, &PointRecord{
			UserID: user.ID,
			AppID:  app.AppID,
			Points: int64(i + 1),
			Type:   "earn",
		}))
	}

	records, total, err := db.ListPointRecords(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 25, total)
	assert.Len(t, records, 10)

	records, _, err = db.ListPointRecords(ctx, user.ID, 3, 10)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(assertErr("Deadlock found when trying to get lock")))
	assert.True(t, IsConflict(assertErr("could not serialize access due to concurrent update")))
	assert.True(t, IsConflict(assertErr("database is locked")))
	assert.False(t, IsConflict(assertErr("syntax error")))
	assert.False(t, IsConflict(nil))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestTransactionWithRetry_GivesUpEventually(t *testing.T) {
	db := newTestDB(t)

	attempts := 0
	err := TransactionWithRetry(context.Background(), db, func(ctx context.Context) error {
		attempts++
		return assertErr("database is locked")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestTransactionWithRetry_NonConflictFailsFast(t *testing.T) {
	db := newTestDB(t)

	attempts := 0
	err := TransactionWithRetry(context.Background(), db, func(ctx context.Context) error {
		attempts++
		return assertErr("constraint violation")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestStore_ListCardsFiltersByStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	now := time.Now()
	cards := []*RechargeCard{
		{CardNo: "C1", CardPassword: "h", ExpiresDays: 30, Status: CardStatusUnused},
		{CardNo: "C2", CardPassword: "h", ExpiresDays: 30, Status: CardStatusUsed, UsedAt: &now},
		{CardNo: "C3", CardPassword: "h", ExpiresDays: 30, Status: CardStatusUnused},
	}
	for _, c := range cards {
		require.NoError(t, db.CreateCard(ctx, c))
	}

	got, total, err := db.ListCards(ctx, CardStatusUnused, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, got, 2)

	got, total, err = db.ListCards(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, got, 3)
}
