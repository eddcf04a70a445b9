// Package store provides the key-value persistence layer for journal data.
//
// Storage is partitioned per user: a shared registry key lists all accounts,
// each user's AppState lives under its own data key, and a session pointer
// names the active user. There is no locking across processes; two terminals
// signed in as the same user race and the last write wins.
package store

import (
	"context"
	"strings"
)

// Storage keys.
const (
	RegistryKey      = "tradejournal_users_v1"
	DataKeyPrefix    = "tradejournal_data_"
	ActiveSessionKey = "tradejournal_active_user"
	corruptSuffix    = "_corrupt_"
)

// KeyValue is the storage capability the record store is built on.
type KeyValue interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists keys starting with prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// DataKey returns the partition key of a user's AppState.
func DataKey(userID string) string {
	return DataKeyPrefix + userID
}

// IsBackupKey reports whether key holds a preserved corrupt payload.
func IsBackupKey(key string) bool {
	return strings.Contains(key, corruptSuffix)
}
