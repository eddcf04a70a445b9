package store

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/models"
)

func newTestRecordStore() (*RecordStore, *MemoryKV, *MemoryKV) {
	durable := NewMemoryKV()
	transient := NewMemoryKV()
	return NewRecordStore(durable, transient, zerolog.Nop()), durable, transient
}

func sampleState(userID string) models.AppState {
	analysis := "Solid month."
	state := models.DefaultState()
	state.User = &models.User{ID: userID, Name: "Dana", Email: "dana@example.com", AuthProvider: models.AuthLocal}
	state.Settings.IsOnboardingComplete = true
	state.Strategies = []models.Strategy{{
		ID:   "s1",
		Name: "Asia range",
		Months: []models.MonthData{{
			ID:         "m1",
			Name:       "March 2024",
			AIAnalysis: &analysis,
			Trades: []models.Trade{{
				ID: "t1", Date: "4", Pair: "GBPUSD", Direction: models.Short,
				RR: 2, Result: models.Win, Pips: 30, PnLPercent: 2, MaxExcursionPercent: 2.4,
			}},
		}},
	}}
	state.CurrentStrategyID = models.StringPtr("s1")
	return state
}

func TestGetRegistryMissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	rs, durable, _ := newTestRecordStore()

	assert.Empty(t, rs.GetRegistry(ctx))

	require.NoError(t, durable.Set(ctx, RegistryKey, "{not json"))
	assert.Empty(t, rs.GetRegistry(ctx))
	assert.Len(t, rs.Backups(ctx), 1)
}

func TestSaveRegistryRoundTrip(t *testing.T) {
	ctx := context.Background()
	rs, _, _ := newTestRecordStore()

	accounts := []models.Account{{User: models.User{ID: "u1", Email: "a@b.c"}, PasswordHash: "h"}}
	require.NoError(t, rs.SaveRegistry(ctx, accounts))
	assert.Equal(t, accounts, rs.GetRegistry(ctx))
}

func TestLoadUserStateMissingReturnsDefault(t *testing.T) {
	rs, _, _ := newTestRecordStore()
	assert.Equal(t, models.DefaultState(), rs.LoadUserState(context.Background(), "nobody"))
}

func TestLoadUserStateCorruptIsBackedUpAndDiscarded(t *testing.T) {
	ctx := context.Background()
	rs, durable, _ := newTestRecordStore()

	require.NoError(t, durable.Set(ctx, DataKey("u1"), `{"strategies": [`))

	state := rs.LoadUserState(ctx, "u1")
	assert.Equal(t, models.DefaultState(), state)

	_, ok, _ := durable.Get(ctx, DataKey("u1"))
	assert.False(t, ok)

	backups := rs.Backups(ctx)
	require.Len(t, backups, 1)
	raw, ok, _ := durable.Get(ctx, backups[0])
	assert.True(t, ok)
	assert.Equal(t, `{"strategies": [`, raw)
}

func TestSaveStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	rs, _, _ := newTestRecordStore()

	state := sampleState("u1")
	require.NoError(t, rs.SaveState(ctx, state, SessionPolicy{}))
	assert.Equal(t, state, rs.LoadUserState(ctx, "u1"))
}

func TestSaveStateWithoutUserIsNoop(t *testing.T) {
	ctx := context.Background()
	rs, durable, transient := newTestRecordStore()

	require.NoError(t, rs.SaveState(ctx, models.DefaultState(), SessionPolicy{PersistAcrossRestarts: true}))

	keys, _ := durable.Keys(ctx, "")
	assert.Empty(t, keys)
	keys, _ = transient.Keys(ctx, "")
	assert.Empty(t, keys)
}

func TestSessionPointerScopes(t *testing.T) {
	ctx := context.Background()

	t.Run("opted out writes transient only", func(t *testing.T) {
		rs, durable, transient := newTestRecordStore()
		require.NoError(t, rs.SaveState(ctx, sampleState("u1"), SessionPolicy{}))

		_, ok, _ := durable.Get(ctx, ActiveSessionKey)
		assert.False(t, ok)
		v, ok, _ := transient.Get(ctx, ActiveSessionKey)
		assert.True(t, ok)
		assert.Equal(t, "u1", v)
	})

	t.Run("opted in writes both", func(t *testing.T) {
		rs, durable, transient := newTestRecordStore()
		require.NoError(t, rs.SaveState(ctx, sampleState("u1"), SessionPolicy{PersistAcrossRestarts: true}))

		v, _, _ := durable.Get(ctx, ActiveSessionKey)
		assert.Equal(t, "u1", v)
		v, _, _ = transient.Get(ctx, ActiveSessionKey)
		assert.Equal(t, "u1", v)
	})

	t.Run("transient preferred over durable", func(t *testing.T) {
		rs, durable, transient := newTestRecordStore()
		require.NoError(t, durable.Set(ctx, ActiveSessionKey, "old"))
		require.NoError(t, transient.Set(ctx, ActiveSessionKey, "new"))

		id, ok := rs.ActiveUserID(ctx)
		assert.True(t, ok)
		assert.Equal(t, "new", id)
	})

	t.Run("durable survives a new terminal session", func(t *testing.T) {
		durable := NewMemoryKV()
		rs := NewRecordStore(durable, NewMemoryKV(), zerolog.Nop())
		require.NoError(t, rs.SaveState(ctx, sampleState("u1"), SessionPolicy{PersistAcrossRestarts: true}))

		restarted := NewRecordStore(durable, NewMemoryKV(), zerolog.Nop())
		id, ok := restarted.ActiveUserID(ctx)
		assert.True(t, ok)
		assert.Equal(t, "u1", id)
	})

	t.Run("opted out is signed out in a new terminal session", func(t *testing.T) {
		durable := NewMemoryKV()
		rs := NewRecordStore(durable, NewMemoryKV(), zerolog.Nop())
		require.NoError(t, rs.SaveState(ctx, sampleState("u1"), SessionPolicy{}))

		restarted := NewRecordStore(durable, NewMemoryKV(), zerolog.Nop())
		_, ok := restarted.ActiveUserID(ctx)
		assert.False(t, ok)
	})
}

func TestClearSessionKeepsData(t *testing.T) {
	ctx := context.Background()
	rs, _, _ := newTestRecordStore()

	state := sampleState("u1")
	require.NoError(t, rs.SaveState(ctx, state, SessionPolicy{PersistAcrossRestarts: true}))
	require.NoError(t, rs.ClearSession(ctx))

	_, ok := rs.ActiveUserID(ctx)
	assert.False(t, ok)
	assert.Equal(t, state, rs.LoadUserState(ctx, "u1"))
}

func TestPartitionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	rs, _, _ := newTestRecordStore()

	a := sampleState("a")
	b := models.DefaultState()
	b.User = &models.User{ID: "b", Email: "b@example.com"}

	require.NoError(t, rs.SaveState(ctx, a, SessionPolicy{}))
	require.NoError(t, rs.SaveState(ctx, b, SessionPolicy{}))

	assert.Len(t, rs.LoadUserState(ctx, "a").Strategies, 1)
	assert.Empty(t, rs.LoadUserState(ctx, "b").Strategies)
}

func TestSaveUserStateLeavesSessionAlone(t *testing.T) {
	ctx := context.Background()
	rs, _, _ := newTestRecordStore()

	require.NoError(t, rs.SaveUserState(ctx, sampleState("u3")))

	_, ok := rs.ActiveUserID(ctx)
	assert.False(t, ok)
	assert.Equal(t, "u3", rs.LoadUserState(ctx, "u3").User.ID)
}

func TestPolicyFor(t *testing.T) {
	assert.False(t, PolicyFor(models.DefaultState()).PersistAcrossRestarts)

	state := sampleState("u4")
	state.User.RememberMe = true
	assert.True(t, PolicyFor(state).PersistAcrossRestarts)
}
