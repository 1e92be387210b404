package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store wraps the one table this service owns: admin API keys. All
// other database access goes through the explorer and query packages.
type Store struct {
	DB *sql.DB
}

// APIKey is a stored credential. The raw key is only ever shown once,
// at creation; only its hash is persisted.
type APIKey struct {
	ID        uuid.UUID
	KeyHash   string
	Label     string
	IsAdmin   bool
	CreatedAt time.Time
}

// New creates a Store over a shared *sql.DB with pooling.
func New(database *sql.DB) *Store {
	return &Store{DB: database}
}

// hashAPIKey hashes a raw API key string using SHA-256 and returns a hex string.
func hashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GetAPIKeyByRawKey looks up an API key by its raw value.
func (s *Store) GetAPIKeyByRawKey(ctx context.Context, rawKey string) (APIKey, error) {
	hash := hashAPIKey(rawKey)

	var key APIKey
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, key_hash, label, is_admin, created_at FROM api_keys WHERE key_hash = $1`,
		hash,
	).Scan(&key.ID, &key.KeyHash, &key.Label, &key.IsAdmin, &key.CreatedAt)
	return key, err
}

// EnsureAdminAPIKey ensures that there is an admin API key for the
// given raw key and label. If it already exists, it is returned;
// otherwise, it is created.
func (s *Store) EnsureAdminAPIKey(ctx context.Context, rawKey, label string) (APIKey, error) {
	key, err := s.GetAPIKeyByRawKey(ctx, rawKey)
	if err == nil {
		return key, nil
	}
	if err != sql.ErrNoRows {
		return APIKey{}, err
	}

	hash := hashAPIKey(rawKey)
	id := uuid.New()
	// ON CONFLICT covers a concurrent process bootstrapping the same key.
	err = s.DB.QueryRowContext(ctx,
		`INSERT INTO api_keys (id, key_hash, label, is_admin)
		 VALUES ($1, $2, $3, TRUE)
		 ON CONFLICT (key_hash) DO UPDATE SET key_hash = EXCLUDED.key_hash
		 RETURNING id, key_hash, label, is_admin, created_at`,
		id, hash, label,
	).Scan(&key.ID, &key.KeyHash, &key.Label, &key.IsAdmin, &key.CreatedAt)
	return key, err
}

// CreateRandomAPIKey creates a new random API key (with opsdeck_
// prefix). It returns the raw key plus the stored record.
func (s *Store) CreateRandomAPIKey(ctx context.Context, label string, isAdmin bool) (string, APIKey, error) {
	raw := "opsdeck_" + uuid.New().String()
	hash := hashAPIKey(raw)
	id := uuid.New()

	var key APIKey
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO api_keys (id, key_hash, label, is_admin)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, key_hash, label, is_admin, created_at`,
		id, hash, label, isAdmin,
	).Scan(&key.ID, &key.KeyHash, &key.Label, &key.IsAdmin, &key.CreatedAt)
	if err != nil {
		return "", APIKey{}, err
	}
	return raw, key, nil
}
