package sysconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/halolabs/memberd/internal/apiserver/database"
	"github.com/halolabs/memberd/internal/common/config"
)

func newTestLoader(t *testing.T) (*Loader, database.Database) {
	t.Helper()
	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return NewLoader(db, zap.NewNop(), nil), db
}

func upsert(t *testing.T, db database.Database, key, value string) {
	t.Helper()
	require.NoError(t, db.UpsertSystemConfig(context.Background(), &database.SystemConfig{
		ConfigKey:   key,
		ConfigValue: value,
	}))
}

func TestLoader_DefaultsBeforeLoad(t *testing.T) {
	loader, _ := newTestLoader(t)

	snap := loader.Current()
	require.NotNil(t, snap)
	assert.Equal(t, "local", snap.Storage.Type)
	assert.False(t, snap.SMS.Enabled)
	assert.False(t, snap.Email.Enabled)
}

func TestLoader_LoadParsesTypedViews(t *testing.T) {
	loader, db := newTestLoader(t)
	ctx := context.Background()

	upsert(t, db, KeyStorageType, "r2")
	upsert(t, db, KeyR2Bucket, "avatars")
	upsert(t, db, KeySMSEnabled, "true")
	upsert(t, db, KeySMSUsername, "acct")
	upsert(t, db, KeySMSSign, "Memberd")
	upsert(t, db, KeyEmailEnabled, "1")
	upsert(t, db, KeyEmailHost, "smtp.example.com")
	upsert(t, db, KeyEmailPort, "587")
	upsert(t, db, KeyEmailSecure, "false")
	upsert(t, db, KeyEmailFrom, "noreply@example.com")

	require.NoError(t, loader.Load(ctx))

	snap := loader.Current()
	assert.Equal(t, "r2", snap.Storage.Type)
	assert.Equal(t, "avatars", snap.Storage.R2Bucket)
	assert.True(t, snap.SMS.Enabled)
	assert.Equal(t, "acct", snap.SMS.Username)
	assert.Equal(t, "Memberd", snap.SMS.Sign)
	assert.True(t, snap.Email.Enabled)
	assert.Equal(t, "smtp.example.com", snap.Email.Host)
	assert.Equal(t, 587, snap.Email.Port)
	assert.False(t, snap.Email.Secure)
	assert.Equal(t, "noreply@example.com", snap.Email.From)
}

func TestLoader_ReloadSwapsSnapshot(t *testing.T) {
	loader, db := newTestLoader(t)
	ctx := context.Background()

	upsert(t, db, KeySMSEnabled, "false")
	require.NoError(t, loader.Load(ctx))
	before := loader.Current()
	assert.False(t, before.SMS.Enabled)

	upsert(t, db, KeySMSEnabled, "true")
	require.NoError(t, loader.Load(ctx))

	// The old snapshot is immutable; only Current moves.
	assert.False(t, before.SMS.Enabled)
	assert.True(t, loader.Current().SMS.Enabled)
}

func TestLoader_BadPortFallsBack(t *testing.T) {
	loader, db := newTestLoader(t)
	upsert(t, db, KeyEmailPort, "not-a-number")
	require.NoError(t, loader.Load(context.Background()))
	assert.Equal(t, 465, loader.Current().Email.Port)
}
