package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	jerrors "tradejournal/internal/errors"
	"tradejournal/internal/models"
)

// SessionPolicy decides where the active-user pointer is kept.
type SessionPolicy struct {
	// PersistAcrossRestarts keeps the user signed in after the terminal
	// session ends. When false only the transient scope is written.
	PersistAcrossRestarts bool
}

// PolicyFor returns the session policy implied by the signed-in user's
// "stay signed in" choice.
func PolicyFor(state models.AppState) SessionPolicy {
	if state.User == nil {
		return SessionPolicy{}
	}
	return SessionPolicy{PersistAcrossRestarts: state.User.RememberMe}
}

// RecordStore reads and writes registry, per-user state and the session
// pointer. Reads never fail: malformed data degrades to empty or default.
type RecordStore struct {
	durable   KeyValue
	transient KeyValue
	logger    zerolog.Logger
	now       func() time.Time
}

// NewRecordStore creates a record store. durable holds the registry and
// user partitions; transient holds the session-scoped pointer.
func NewRecordStore(durable, transient KeyValue, logger zerolog.Logger) *RecordStore {
	return &RecordStore{
		durable:   durable,
		transient: transient,
		logger:    logger.With().Str("component", "record_store").Logger(),
		now:       time.Now,
	}
}

// GetRegistry returns all registered accounts, or none if the registry is
// missing or unreadable.
func (r *RecordStore) GetRegistry(ctx context.Context) []models.Account {
	raw, ok, err := r.durable.Get(ctx, RegistryKey)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to read user registry")
		return []models.Account{}
	}
	if !ok {
		return []models.Account{}
	}

	var accounts []models.Account
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		r.logger.Warn().Err(err).Msg("User registry is corrupt, treating as empty")
		r.backup(ctx, RegistryKey, raw)
		return []models.Account{}
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	return accounts
}

// SaveRegistry overwrites the registry.
func (r *RecordStore) SaveRegistry(ctx context.Context, accounts []models.Account) error {
	if accounts == nil {
		accounts = []models.Account{}
	}
	data, err := json.Marshal(accounts)
	if err != nil {
		return jerrors.NewStorageError("encode", RegistryKey, err)
	}
	if err := r.durable.Set(ctx, RegistryKey, string(data)); err != nil {
		return jerrors.NewStorageError("set", RegistryKey, err)
	}
	return nil
}

// LoadUserState returns the stored state of userID. A missing partition
// yields the default state; a corrupt one is backed up under a sibling key,
// discarded, and replaced by the default state.
func (r *RecordStore) LoadUserState(ctx context.Context, userID string) models.AppState {
	key := DataKey(userID)
	raw, ok, err := r.durable.Get(ctx, key)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to read user state")
		return models.DefaultState()
	}
	if !ok {
		return models.DefaultState()
	}

	var state models.AppState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("User state is corrupt, resetting to default")
		if r.backup(ctx, key, raw) {
			if err := r.durable.Delete(ctx, key); err != nil {
				r.logger.Warn().Err(err).Str("key", key).Msg("Failed to discard corrupt state")
			}
		}
		return models.DefaultState()
	}

	return fillDefaults(state)
}

// SaveState writes state to its user's partition and records the user as
// active. States without a user are never persisted.
func (r *RecordStore) SaveState(ctx context.Context, state models.AppState, policy SessionPolicy) error {
	if state.User == nil {
		return nil
	}
	if err := r.SaveUserState(ctx, state); err != nil {
		return err
	}

	userID := state.User.ID
	if err := r.transient.Set(ctx, ActiveSessionKey, userID); err != nil {
		return jerrors.NewStorageError("set", ActiveSessionKey, err)
	}
	var err error
	if policy.PersistAcrossRestarts {
		err = r.durable.Set(ctx, ActiveSessionKey, userID)
	} else {
		err = r.durable.Delete(ctx, ActiveSessionKey)
	}
	if err != nil {
		return jerrors.NewStorageError("session", ActiveSessionKey, err)
	}
	return nil
}

// SaveUserState writes state to its user's partition without touching the
// session pointer. Used to seed a partition for a user who is not signed in.
func (r *RecordStore) SaveUserState(ctx context.Context, state models.AppState) error {
	if state.User == nil {
		return nil
	}
	key := DataKey(state.User.ID)

	data, err := json.Marshal(state)
	if err != nil {
		return jerrors.NewStorageError("encode", key, err)
	}
	if err := r.durable.Set(ctx, key, string(data)); err != nil {
		return jerrors.NewStorageError("set", key, err)
	}

	r.logger.Debug().Str("user_id", state.User.ID).Int("bytes", len(data)).Msg("State saved")
	return nil
}

// ClearSession removes the session pointer from both scopes. User data is
// left untouched.
func (r *RecordStore) ClearSession(ctx context.Context) error {
	if err := r.transient.Delete(ctx, ActiveSessionKey); err != nil {
		return jerrors.NewStorageError("delete", ActiveSessionKey, err)
	}
	if err := r.durable.Delete(ctx, ActiveSessionKey); err != nil {
		return jerrors.NewStorageError("delete", ActiveSessionKey, err)
	}
	return nil
}

// ActiveUserID returns the session pointer, preferring the transient scope.
func (r *RecordStore) ActiveUserID(ctx context.Context) (string, bool) {
	for _, kv := range []KeyValue{r.transient, r.durable} {
		id, ok, err := kv.Get(ctx, ActiveSessionKey)
		if err != nil {
			r.logger.Warn().Err(err).Msg("Failed to read session pointer")
			continue
		}
		if ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// Backups lists keys holding preserved corrupt payloads.
func (r *RecordStore) Backups(ctx context.Context) []string {
	var out []string
	for _, prefix := range []string{DataKeyPrefix, RegistryKey} {
		keys, err := r.durable.Keys(ctx, prefix)
		if err != nil {
			r.logger.Warn().Err(err).Msg("Failed to list keys")
			continue
		}
		for _, k := range keys {
			if IsBackupKey(k) {
				out = append(out, k)
			}
		}
	}
	return out
}

func (r *RecordStore) backup(ctx context.Context, key, raw string) bool {
	backupKey := fmt.Sprintf("%s%s%d", key, corruptSuffix, r.now().UnixMilli())
	if err := r.durable.Set(ctx, backupKey, raw); err != nil {
		r.logger.Warn().Err(err).Str("key", backupKey).Msg("Failed to back up corrupt payload")
		return false
	}
	r.logger.Info().Str("key", backupKey).Msg("Corrupt payload backed up")
	return true
}

func fillDefaults(state models.AppState) models.AppState {
	defaults := models.DefaultSettings()
	if state.Strategies == nil {
		state.Strategies = []models.Strategy{}
	}
	if state.Settings.Theme == "" {
		state.Settings.Theme = defaults.Theme
	}
	if state.Settings.Language == "" {
		state.Settings.Language = defaults.Language
	}
	return state
}
