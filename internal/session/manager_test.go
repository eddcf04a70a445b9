package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/models"
	"tradejournal/internal/security"
	"tradejournal/internal/store"
)

type recordingAuditor struct {
	events []security.AuditEvent
}

func (r *recordingAuditor) Log(_ context.Context, e security.AuditEvent) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingAuditor) types() []security.AuditEventType {
	out := make([]security.AuditEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	mgr     *Manager
	rs      *store.RecordStore
	durable *store.MemoryKV
	trans   *store.MemoryKV
	clock   *fakeClock
	audit   *recordingAuditor
}

func newFixture() *fixture {
	durable := store.NewMemoryKV()
	trans := store.NewMemoryKV()
	rs := store.NewRecordStore(durable, trans, zerolog.Nop())
	clock := &fakeClock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	audit := &recordingAuditor{}
	mgr := NewManager(rs, zerolog.Nop(),
		WithHasher(security.Hasher{Iterations: 1000}),
		WithClock(clock.Now),
		WithAuditor(audit),
	)
	return &fixture{mgr: mgr, rs: rs, durable: durable, trans: trans, clock: clock, audit: audit}
}

func (f *fixture) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	user, err := f.mgr.Register(context.Background(), Registration{Name: "Sam", Email: email, Password: password})
	require.NoError(t, err)
	return user
}

func TestRegisterSeedsPartitionWithoutSigningIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	user := f.register(t, "sam@example.com", "secret1")

	assert.Equal(t, models.AuthLocal, user.AuthProvider)
	assert.NotEmpty(t, user.ID)

	state := f.rs.LoadUserState(ctx, user.ID)
	require.NotNil(t, state.User)
	assert.Equal(t, user.ID, state.User.ID)
	assert.True(t, state.Settings.IsOnboardingComplete)

	_, ok := f.mgr.ResolveActiveUser(ctx)
	assert.False(t, ok)

	accounts := f.rs.GetRegistry(ctx)
	require.Len(t, accounts, 1)
	assert.Empty(t, accounts[0].Password)
	assert.NotContains(t, accounts[0].PasswordHash, "secret1")
}

func TestRegisterRejectsDuplicateEmailAnyCase(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.register(t, "sam@example.com", "secret1")

	_, err := f.mgr.Register(ctx, Registration{Email: "SAM@Example.com", Password: "another1"})
	assert.ErrorIs(t, err, jerrors.ErrEmailTaken)
	assert.False(t, f.mgr.RegisterUser(ctx, Registration{Email: " sam@EXAMPLE.com ", Password: "another1"}))
	assert.Len(t, f.rs.GetRegistry(ctx), 1)
}

func TestRegisterValidatesInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.mgr.Register(ctx, Registration{Email: "no-at-sign", Password: "secret1"})
	assert.ErrorIs(t, err, jerrors.ErrInputValidation)

	_, err = f.mgr.Register(ctx, Registration{Email: "a@b.co", Password: "short"})
	assert.ErrorIs(t, err, jerrors.ErrInputValidation)
	assert.Empty(t, f.rs.GetRegistry(ctx))
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	user := f.register(t, "sam@example.com", "secret1")

	got, err := f.mgr.Login(ctx, "Sam@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = f.mgr.Login(ctx, "sam@example.com", "wrong-one")
	assert.ErrorIs(t, err, jerrors.ErrInvalidCredentials)

	_, err = f.mgr.Login(ctx, "ghost@example.com", "secret1")
	assert.ErrorIs(t, err, jerrors.ErrUserNotFound)

	assert.Equal(t, []security.AuditEventType{
		security.AuditRegister, security.AuditLogin, security.AuditAuthFailed, security.AuditAuthFailed,
	}, f.audit.types())
}

func TestVerifyPasswordRejectsExternalAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	user, err := f.mgr.LoginExternal(ctx, ExternalIdentity{ID: "g-1", Name: "Ext", Email: "ext@example.com"})
	require.NoError(t, err)
	assert.False(t, f.mgr.VerifyPassword(ctx, user.ID, ""))
	assert.False(t, f.mgr.VerifyPassword(ctx, "missing", "secret1"))
}

func TestLegacyPasswordUpgradedOnVerify(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	legacy := models.Account{
		User:     models.User{ID: "old-1", Name: "Old", Email: "old@example.com", AuthProvider: models.AuthLocal},
		Password: "plain-secret",
	}
	require.NoError(t, f.rs.SaveRegistry(ctx, []models.Account{legacy}))

	assert.False(t, f.mgr.VerifyPassword(ctx, "old-1", "wrong"))
	assert.Equal(t, "plain-secret", f.rs.GetRegistry(ctx)[0].Password)

	assert.True(t, f.mgr.VerifyPassword(ctx, "old-1", "plain-secret"))
	acct := f.rs.GetRegistry(ctx)[0]
	assert.Empty(t, acct.Password)
	assert.NotEmpty(t, acct.PasswordHash)

	assert.True(t, f.mgr.VerifyPassword(ctx, "old-1", "plain-secret"))
}

func TestLoginExternalCreatesThenRefreshes(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	first, err := f.mgr.LoginExternal(ctx, ExternalIdentity{ID: "g-1", Name: "Ext", Email: "ext@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "g-1", first.ID)
	assert.Equal(t, models.AuthExternal, first.AuthProvider)
	assert.True(t, f.rs.LoadUserState(ctx, "g-1").Settings.IsOnboardingComplete)

	second, err := f.mgr.LoginExternal(ctx, ExternalIdentity{ID: "g-1", Name: "Ext Renamed", Email: "EXT@example.com", AvatarURL: "https://img/x.png"})
	require.NoError(t, err)
	assert.Equal(t, "g-1", second.ID)
	assert.Equal(t, "Ext Renamed", second.Name)
	assert.Equal(t, "https://img/x.png", second.AvatarURL)
	assert.Len(t, f.rs.GetRegistry(ctx), 1)
}

func TestLoginExternalNeverClaimsPasswordAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	local := f.register(t, "sam@example.com", "secret1")

	_, err := f.mgr.LoginExternal(ctx, ExternalIdentity{ID: "g-9", Name: "Impostor", Email: "SAM@example.com"})
	assert.ErrorIs(t, err, jerrors.ErrEmailTaken)

	_, err = f.mgr.LoginExternal(ctx, ExternalIdentity{ID: local.ID, Name: "Impostor", Email: "other@example.com"})
	assert.ErrorIs(t, err, jerrors.ErrEmailTaken)

	accounts := f.rs.GetRegistry(ctx)
	require.Len(t, accounts, 1)
	assert.Equal(t, models.AuthLocal, accounts[0].AuthProvider)
	assert.NotEqual(t, "Impostor", accounts[0].Name)
	assert.True(t, f.mgr.VerifyPassword(ctx, local.ID, "secret1"))
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	user := f.register(t, "sam@example.com", "secret1")

	_, ok := f.mgr.InitiatePasswordReset(ctx, "ghost@example.com")
	assert.False(t, ok)

	code, ok := f.mgr.InitiatePasswordReset(ctx, "SAM@example.com")
	require.True(t, ok)
	assert.Len(t, code, 6)

	acct := f.rs.GetRegistry(ctx)[0]
	assert.Equal(t, code, acct.ResetCode)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute).UnixMilli(), acct.ResetCodeExpiry)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.False(t, f.mgr.CompletePasswordReset(ctx, "sam@example.com", wrong, "newsecret"))
	assert.False(t, f.mgr.CompletePasswordReset(ctx, "sam@example.com", code, "short"))
	assert.True(t, f.mgr.VerifyPassword(ctx, user.ID, "secret1"))

	assert.True(t, f.mgr.CompletePasswordReset(ctx, "sam@example.com", code, "newsecret"))
	assert.True(t, f.mgr.VerifyPassword(ctx, user.ID, "newsecret"))
	assert.False(t, f.mgr.VerifyPassword(ctx, user.ID, "secret1"))

	acct = f.rs.GetRegistry(ctx)[0]
	assert.Empty(t, acct.ResetCode)
	assert.Zero(t, acct.ResetCodeExpiry)

	assert.False(t, f.mgr.CompletePasswordReset(ctx, "sam@example.com", code, "again123"))
}

func TestPasswordResetExpires(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	user := f.register(t, "sam@example.com", "secret1")

	code, ok := f.mgr.InitiatePasswordReset(ctx, "sam@example.com")
	require.True(t, ok)

	f.clock.Advance(10 * time.Minute)
	assert.False(t, f.mgr.CompletePasswordReset(ctx, "sam@example.com", code, "newsecret"))
	assert.True(t, f.mgr.VerifyPassword(ctx, user.ID, "secret1"))
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	user := f.register(t, "sam@example.com", "secret1")

	assert.False(t, f.mgr.ChangePassword(ctx, user.ID, "wrong-old", "newsecret"))
	assert.False(t, f.mgr.ChangePassword(ctx, user.ID, "secret1", "tiny"))
	assert.True(t, f.mgr.ChangePassword(ctx, user.ID, "secret1", "newsecret"))
	assert.True(t, f.mgr.VerifyPassword(ctx, user.ID, "newsecret"))
}

func TestUpdateProfileAndListAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	user := f.register(t, "sam@example.com", "secret1")
	f.register(t, "kim@example.com", "secret2")

	updated, err := f.mgr.UpdateProfile(ctx, user.ID, "Samantha", "")
	require.NoError(t, err)
	assert.Equal(t, "Samantha", updated.Name)

	_, err = f.mgr.UpdateProfile(ctx, "missing", "x", "")
	assert.ErrorIs(t, err, jerrors.ErrUserNotFound)

	accounts := f.mgr.ListAccounts(ctx)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Samantha", accounts[0].Name)
	assert.Equal(t, "kim@example.com", accounts[1].Email)
}
