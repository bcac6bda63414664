// Package domain defines the core types and interfaces for FraudShield.
package domain

import (
	"context"
	"time"
)

// Store is the key-value persistence port used by the engine. Values are
// JSON-serialized collections; a missing key reads as nil with no error so
// callers can default to an empty collection.
type Store interface {
	// Get retrieves the raw value for a key. Returns nil, nil when the key
	// does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores the raw value for a key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Storage keys used by the core.
const (
	KeyHistory   = "prediction_history"
	KeyBatchRows = "uploaded_batch_rows"
	KeyKYC       = "kyc_verifications"
	KeyRules     = "alert_rules"
)

// MaxHistoryEntries caps the history collection; oldest entries are evicted
// once new entries are prepended past this size.
const MaxHistoryEntries = 1000

// StoreConfig holds configuration for persistence adapter initialization.
type StoreConfig struct {
	// Driver is the adapter type: "memory", "sqlite", "postgres" or "redis"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Redis specific
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}
