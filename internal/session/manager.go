// Package session manages the account registry, credential checks, password
// reset and resolution of the signed-in user across restarts.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/models"
	"tradejournal/internal/security"
	"tradejournal/internal/store"
	"tradejournal/pkg/id"
)

// DefaultResetTTL is how long a password reset code stays valid.
const DefaultResetTTL = 10 * time.Minute

// Registration is the input to account creation.
type Registration struct {
	Name      string
	Email     string
	Password  string
	AvatarURL string
}

// ExternalIdentity is the identity returned by an external login provider.
type ExternalIdentity struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

// Manager owns the registry. Registry updates are read-modify-write and are
// serialized within the process only.
type Manager struct {
	store    *store.RecordStore
	auditor  security.Auditor
	hasher   security.Hasher
	logger   *security.SafeLogger
	now      func() time.Time
	resetTTL time.Duration

	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithAuditor records auth outcomes to a.
func WithAuditor(a security.Auditor) Option {
	return func(m *Manager) {
		if a != nil {
			m.auditor = a
		}
	}
}

// WithHasher overrides the password hasher.
func WithHasher(h security.Hasher) Option {
	return func(m *Manager) { m.hasher = h }
}

// WithClock overrides the time source used for reset expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithResetTTL overrides the lifetime of reset codes.
func WithResetTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.resetTTL = ttl
		}
	}
}

// NewManager creates a session manager over rs.
func NewManager(rs *store.RecordStore, logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:    rs,
		auditor:  security.NopAuditor{},
		hasher:   security.DefaultHasher,
		logger:   security.NewSafeLogger(logger.With().Str("component", "session").Logger()),
		now:      time.Now,
		resetTTL: DefaultResetTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register creates a local account and seeds its journal. It does not sign
// the new user in.
func (m *Manager) Register(ctx context.Context, reg Registration) (*models.User, error) {
	if err := security.ValidateEmail(reg.Email); err != nil {
		return nil, err
	}
	if err := security.ValidatePassword(reg.Password); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := m.store.GetRegistry(ctx)
	if findByEmail(accounts, reg.Email) >= 0 {
		m.audit(ctx, security.AuditEvent{EventType: security.AuditRegister, Email: reg.Email, ErrorMsg: "email taken"})
		return nil, jerrors.ErrEmailTaken
	}

	hash, err := m.hasher.Hash(reg.Password)
	if err != nil {
		return nil, jerrors.NewSecurityError("register", "hashing password", err)
	}

	name := strings.TrimSpace(reg.Name)
	if name == "" {
		name = defaultName(reg.Email)
	}
	account := models.Account{
		User: models.User{
			ID:           id.NewUserID(),
			Name:         name,
			Email:        strings.TrimSpace(reg.Email),
			AvatarURL:    reg.AvatarURL,
			AuthProvider: models.AuthLocal,
		},
		PasswordHash: hash,
	}

	if err := m.store.SaveRegistry(ctx, append(accounts, account)); err != nil {
		return nil, err
	}
	if err := m.seedPartition(ctx, account.User); err != nil {
		return nil, err
	}

	m.logger.Info().Str("user_id", account.ID).Msg("Account registered")
	m.audit(ctx, security.AuditEvent{EventType: security.AuditRegister, UserID: account.ID, Email: account.Email, Success: true})
	user := account.Profile()
	return &user, nil
}

// RegisterUser creates a local account and reports whether it was created.
func (m *Manager) RegisterUser(ctx context.Context, reg Registration) bool {
	_, err := m.Register(ctx, reg)
	return err == nil
}

// VerifyPassword reports whether attempt is the password of the local
// account userID. A legacy plaintext password is replaced by a hash the
// first time it verifies.
func (m *Manager) VerifyPassword(ctx context.Context, userID, attempt string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := m.store.GetRegistry(ctx)
	i := findByID(accounts, userID)
	if i < 0 {
		return false
	}
	return m.verifyLocked(ctx, accounts, i, attempt)
}

// Login authenticates email and password and returns the account's profile.
func (m *Manager) Login(ctx context.Context, email, password string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := m.store.GetRegistry(ctx)
	i := findByEmail(accounts, email)
	if i < 0 {
		m.audit(ctx, security.AuditEvent{EventType: security.AuditAuthFailed, Email: email, ErrorMsg: "unknown email"})
		return nil, jerrors.ErrUserNotFound
	}
	if !m.verifyLocked(ctx, accounts, i, password) {
		m.audit(ctx, security.AuditEvent{EventType: security.AuditAuthFailed, UserID: accounts[i].ID, Email: email, ErrorMsg: "wrong password"})
		return nil, jerrors.ErrInvalidCredentials
	}

	m.logger.Info().Str("user_id", accounts[i].ID).Msg("Login succeeded")
	m.audit(ctx, security.AuditEvent{EventType: security.AuditLogin, UserID: accounts[i].ID, Email: accounts[i].Email, Success: true})
	user := accounts[i].Profile()
	return &user, nil
}

// LoginExternal maps an external identity onto the registry, creating the
// account on first sight and refreshing its display fields afterwards.
// Identities only ever map onto external accounts: an email or id held by
// a password account returns ErrEmailTaken.
func (m *Manager) LoginExternal(ctx context.Context, ident ExternalIdentity) (*models.User, error) {
	if err := security.ValidateEmail(ident.Email); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := m.store.GetRegistry(ctx)
	i := findByEmail(accounts, ident.Email)
	if i < 0 && ident.ID != "" {
		i = findByID(accounts, ident.ID)
	}

	if i >= 0 && accounts[i].AuthProvider != models.AuthExternal {
		m.logger.Warn().Str("user_id", accounts[i].ID).Msg("External login refused for password account")
		m.audit(ctx, security.AuditEvent{EventType: security.AuditAuthFailed, UserID: accounts[i].ID, Email: ident.Email, ErrorMsg: "external identity matches password account"})
		return nil, jerrors.ErrEmailTaken
	}

	created := false
	if i >= 0 {
		if name := strings.TrimSpace(ident.Name); name != "" {
			accounts[i].Name = name
		}
		if ident.AvatarURL != "" {
			accounts[i].AvatarURL = ident.AvatarURL
		}
	} else {
		userID := ident.ID
		if userID == "" {
			userID = id.NewUserID()
		}
		name := strings.TrimSpace(ident.Name)
		if name == "" {
			name = defaultName(ident.Email)
		}
		accounts = append(accounts, models.Account{User: models.User{
			ID:           userID,
			Name:         name,
			Email:        strings.TrimSpace(ident.Email),
			AvatarURL:    ident.AvatarURL,
			AuthProvider: models.AuthExternal,
		}})
		i = len(accounts) - 1
		created = true
	}

	if err := m.store.SaveRegistry(ctx, accounts); err != nil {
		return nil, err
	}
	if created {
		if err := m.seedPartition(ctx, accounts[i].User); err != nil {
			return nil, err
		}
	}

	m.logger.Info().Str("user_id", accounts[i].ID).Bool("created", created).Msg("External login")
	m.audit(ctx, security.AuditEvent{
		EventType: security.AuditLoginExternal,
		UserID:    accounts[i].ID,
		Email:     accounts[i].Email,
		Success:   true,
		Details:   map[string]interface{}{"created": created},
	})
	user := accounts[i].Profile()
	return &user, nil
}

// InitiatePasswordReset issues a reset code for the account registered
// under email. The code is returned to the caller for delivery.
func (m *Manager) InitiatePasswordReset(ctx context.Context, email string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := m.store.GetRegistry(ctx)
	i := findByEmail(accounts, email)
	if i < 0 {
		m.audit(ctx, security.AuditEvent{EventType: security.AuditResetRequested, Email: email, ErrorMsg: "unknown email"})
		return "", false
	}

	code, err := security.NewResetCode()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to generate reset code")
		return "", false
	}
	accounts[i].ResetCode = code
	accounts[i].ResetCodeExpiry = m.now().Add(m.resetTTL).UnixMilli()

	if err := m.store.SaveRegistry(ctx, accounts); err != nil {
		m.logger.Error().Err(err).Msg("Failed to store reset code")
		return "", false
	}

	m.audit(ctx, security.AuditEvent{EventType: security.AuditResetRequested, UserID: accounts[i].ID, Email: accounts[i].Email, Success: true})
	return code, true
}

// CompletePasswordReset replaces the password when code matches the last
// issued, unexpired code. On any failure nothing is changed.
func (m *Manager) CompletePasswordReset(ctx context.Context, email, code, newPassword string) bool {
	if security.ValidatePassword(newPassword) != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := m.store.GetRegistry(ctx)
	i := findByEmail(accounts, email)
	if i < 0 {
		return false
	}
	acct := accounts[i]
	if !security.CodesEqual(acct.ResetCode, strings.TrimSpace(code)) || acct.ResetCodeExpiry <= m.now().UnixMilli() {
		m.audit(ctx, security.AuditEvent{EventType: security.AuditResetCompleted, UserID: acct.ID, Email: acct.Email, ErrorMsg: "invalid or expired code"})
		return false
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to hash new password")
		return false
	}
	accounts[i].PasswordHash = hash
	accounts[i].Password = ""
	accounts[i].ResetCode = ""
	accounts[i].ResetCodeExpiry = 0

	if err := m.store.SaveRegistry(ctx, accounts); err != nil {
		m.logger.Error().Err(err).Msg("Failed to store new password")
		return false
	}

	m.audit(ctx, security.AuditEvent{EventType: security.AuditResetCompleted, UserID: acct.ID, Email: acct.Email, Success: true})
	return true
}

// ChangePassword replaces the password of a local account after verifying
// the current one.
func (m *Manager) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) bool {
	if security.ValidatePassword(newPassword) != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := m.store.GetRegistry(ctx)
	i := findByID(accounts, userID)
	if i < 0 || !m.verifyLocked(ctx, accounts, i, oldPassword) {
		m.audit(ctx, security.AuditEvent{EventType: security.AuditPasswordChange, UserID: userID, ErrorMsg: "verification failed"})
		return false
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return false
	}
	accounts[i].PasswordHash = hash
	accounts[i].Password = ""
	if err := m.store.SaveRegistry(ctx, accounts); err != nil {
		m.logger.Error().Err(err).Msg("Failed to store new password")
		return false
	}

	m.audit(ctx, security.AuditEvent{EventType: security.AuditPasswordChange, UserID: userID, Success: true})
	return true
}

// UpdateProfile changes the display fields of an account. Empty values are
// left unchanged.
func (m *Manager) UpdateProfile(ctx context.Context, userID, name, avatarURL string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := m.store.GetRegistry(ctx)
	i := findByID(accounts, userID)
	if i < 0 {
		return nil, jerrors.ErrUserNotFound
	}
	if name = strings.TrimSpace(name); name != "" {
		accounts[i].Name = name
	}
	if avatarURL != "" {
		accounts[i].AvatarURL = avatarURL
	}
	if err := m.store.SaveRegistry(ctx, accounts); err != nil {
		return nil, err
	}
	user := accounts[i].Profile()
	return &user, nil
}

// SetRememberMe records the last "stay signed in" choice of an account.
func (m *Manager) SetRememberMe(ctx context.Context, userID string, remember bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := m.store.GetRegistry(ctx)
	i := findByID(accounts, userID)
	if i < 0 {
		return jerrors.ErrUserNotFound
	}
	if accounts[i].RememberMe == remember {
		return nil
	}
	accounts[i].RememberMe = remember
	return m.store.SaveRegistry(ctx, accounts)
}

// ListAccounts returns the profiles of every registered account.
func (m *Manager) ListAccounts(ctx context.Context) []models.User {
	accounts := m.store.GetRegistry(ctx)
	users := make([]models.User, 0, len(accounts))
	for _, a := range accounts {
		users = append(users, a.Profile())
	}
	return users
}

func (m *Manager) verifyLocked(ctx context.Context, accounts []models.Account, i int, attempt string) bool {
	acct := accounts[i]
	if acct.AuthProvider != models.AuthLocal {
		return false
	}
	if acct.PasswordHash != "" {
		return security.VerifyPassword(acct.PasswordHash, attempt)
	}
	if !security.VerifyLegacy(acct.Password, attempt) {
		return false
	}

	hash, err := m.hasher.Hash(attempt)
	if err != nil {
		m.logger.Warn().Err(err).Str("user_id", acct.ID).Msg("Failed to upgrade legacy password")
		return true
	}
	accounts[i].PasswordHash = hash
	accounts[i].Password = ""
	if err := m.store.SaveRegistry(ctx, accounts); err != nil {
		m.logger.Warn().Err(err).Str("user_id", acct.ID).Msg("Failed to upgrade legacy password")
	} else {
		m.logger.Info().Str("user_id", acct.ID).Msg("Legacy password upgraded to hash")
	}
	return true
}

func (m *Manager) seedPartition(ctx context.Context, user models.User) error {
	state := models.DefaultState()
	state.User = &user
	state.Settings.IsOnboardingComplete = true
	return m.store.SaveUserState(ctx, state)
}

func (m *Manager) audit(ctx context.Context, event security.AuditEvent) {
	if err := m.auditor.Log(ctx, event); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to write audit event")
	}
}

func findByEmail(accounts []models.Account, email string) int {
	for i, a := range accounts {
		if models.SameEmail(a.Email, email) {
			return i
		}
	}
	return -1
}

func findByID(accounts []models.Account, userID string) int {
	for i, a := range accounts {
		if a.ID == userID {
			return i
		}
	}
	return -1
}

func defaultName(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return strings.TrimSpace(email[:at])
	}
	return strings.TrimSpace(email)
}
