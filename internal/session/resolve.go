package session

import (
	"context"

	"tradejournal/internal/models"
	"tradejournal/internal/security"
	"tradejournal/internal/store"
)

// ResolveActiveUser returns the id named by the session pointer, preferring
// the current terminal session over the durable scope.
func (m *Manager) ResolveActiveUser(ctx context.Context) (string, bool) {
	return m.store.ActiveUserID(ctx)
}

// Open starts a session for an authenticated user: their journal is loaded,
// the user is attached and the state is written with the chosen policy.
func (m *Manager) Open(ctx context.Context, user models.User, remember bool) (models.AppState, error) {
	user.RememberMe = remember
	if err := m.SetRememberMe(ctx, user.ID, remember); err != nil {
		m.logger.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record remember-me choice")
	}

	loaded := m.store.LoadUserState(ctx, user.ID)
	state := models.DefaultState()
	state.User = &user
	state.Strategies = loaded.Strategies
	state.Settings = loaded.Settings

	if err := m.store.SaveState(ctx, state, store.PolicyFor(state)); err != nil {
		return models.AppState{}, err
	}
	return state, nil
}

// Restore rebuilds the state of the user named by the session pointer. A
// partition without a matching user is rehydrated from the registry; a
// pointer to an unknown account is cleared and the default state returned.
func (m *Manager) Restore(ctx context.Context) models.AppState {
	userID, ok := m.ResolveActiveUser(ctx)
	if !ok {
		return models.DefaultState()
	}

	accounts := m.store.GetRegistry(ctx)
	i := findByID(accounts, userID)
	if i < 0 {
		m.logger.Warn().Str("user_id", userID).Msg("Session names an unknown account, clearing")
		if err := m.store.ClearSession(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to clear session")
		}
		m.audit(ctx, security.AuditEvent{EventType: security.AuditSessionCleared, UserID: userID})
		return models.DefaultState()
	}

	state := m.store.LoadUserState(ctx, userID)
	if state.User == nil || state.User.ID != userID {
		profile := accounts[i].Profile()
		state.User = &profile
	}
	return state
}

// Logout clears the session pointer. Journal data is kept.
func (m *Manager) Logout(ctx context.Context, userID string) error {
	if err := m.store.ClearSession(ctx); err != nil {
		return err
	}
	m.audit(ctx, security.AuditEvent{EventType: security.AuditLogout, UserID: userID, Success: true})
	return nil
}
