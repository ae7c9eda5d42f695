// Package session persists the one in-progress game so the client can resume
// it after a restart. It never keeps finished games; history is out of scope.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

// Snapshot is the stored form of the current game: the applied move list plus
// enough metadata to resume against the same engine variant.
type Snapshot struct {
	SessionUUID string    `json:"session_uuid"`
	PlayerColor string    `json:"player_color"`
	EngineID    string    `json:"engine_id"`
	VariantID   string    `json:"variant_id"`
	MovesUCI    []string  `json:"moves_uci"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store holds at most one snapshot per profile key.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
	Clear(ctx context.Context) error
}

type redisStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisStore connects to redisURL and namespaces the snapshot under the
// given profile name.
func NewRedisStore(redisURL, profile string, ttl time.Duration) (Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis url required for session store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisStore{rdb: rdb, key: sessionKey(profile), ttl: ttl}, nil
}

func sessionKey(profile string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(profile))))
	return "nnchess:session:" + hex.EncodeToString(sum[:])
}

func (s *redisStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("cannot save nil session snapshot")
	}
	snap.UpdatedAt = time.Now()
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.rdb.Set(ctx, s.key, raw, s.ttl).Err()
}

func (s *redisStore) Load(ctx context.Context) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if snap.SessionUUID == "" {
		return nil, ErrNotFound
	}
	return &snap, nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

// memoryStore is used when no Redis URL is configured; the session then lives
// only as long as the process.
type memoryStore struct {
	mu   sync.Mutex
	snap *Snapshot
}

func NewMemoryStore() Store {
	return &memoryStore{}
}

func (m *memoryStore) Save(_ context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("cannot save nil session snapshot")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *snap
	cp.MovesUCI = append([]string(nil), snap.MovesUCI...)
	cp.UpdatedAt = time.Now()
	m.snap = &cp
	return nil
}

func (m *memoryStore) Load(_ context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, ErrNotFound
	}
	cp := *m.snap
	cp.MovesUCI = append([]string(nil), m.snap.MovesUCI...)
	return &cp, nil
}

func (m *memoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = nil
	return nil
}
