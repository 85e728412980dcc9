// Package settings serves bank settings as point-in-time snapshots. An
// engine reads one snapshot at the start of an operation and carries it
// through; a toggle flipped mid-flight can never split a single settlement.
package settings

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"
	"github.com/teachertools/classbank/classbank/config"
	"github.com/teachertools/classbank/classbank/database/repositories"
)

const snapshotCacheKey = "settings_snapshot"

// Snapshot is one consistent read of every bank setting. Version is the
// highest per-key version seen, so two snapshots compare by recency.
type Snapshot struct {
	values   map[string]string
	Version  int64
	LoadedAt time.Time
}

func (s *Snapshot) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *Snapshot) Bool(key string) bool {
	v, ok := s.values[key]
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func (s *Snapshot) Int(key string, fallback int) int {
	v, ok := s.values[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s *Snapshot) Decimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v, ok := s.values[key]
	if !ok {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return fallback
	}
	return d
}

// GameEnabled reports the per-game enable flag; games default to enabled
// when the key is absent.
func (s *Snapshot) GameEnabled(gameType string) bool {
	v, ok := s.values[config.SettingGameEnabled+gameType]
	if !ok {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

type cachedSnapshot struct {
	snapshot *Snapshot
	cachedAt time.Time
}

// Service loads snapshots with a small LRU in front of the store. Writes go
// straight through and drop the cached copy.
type Service struct {
	repo        repositories.SettingRepository
	cache       *lru.Cache
	cacheExpiry time.Duration
}

func NewService(repo repositories.SettingRepository) *Service {
	cache, _ := lru.New(config.SettingsCacheSize)
	return &Service{
		repo:        repo,
		cache:       cache,
		cacheExpiry: config.SettingsCacheExpiration,
	}
}

// Snapshot returns the current settings as one consistent read.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	if entry, ok := s.cache.Get(snapshotCacheKey); ok {
		cached := entry.(cachedSnapshot)
		if time.Since(cached.cachedAt) < s.cacheExpiry {
			return cached.snapshot, nil
		}
		s.cache.Remove(snapshotCacheKey)
	}

	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		values:   make(map[string]string, len(rows)),
		LoadedAt: time.Now(),
	}
	for _, row := range rows {
		snap.values[row.Key] = row.Value
		if row.Version > snap.Version {
			snap.Version = row.Version
		}
	}

	s.cache.Add(snapshotCacheKey, cachedSnapshot{snapshot: snap, cachedAt: snap.LoadedAt})
	return snap, nil
}

// Get reads one setting, bypassing the snapshot cache.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// Set writes one setting and invalidates the cached snapshot. Operations
// already in flight keep the snapshot they started with.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		return err
	}
	s.cache.Remove(snapshotCacheKey)

	slog.Info("Bank setting updated",
		slog.String("type", "op"),
		slog.String("key", key),
		slog.String("value", value))
	return nil
}

// NewSnapshotFromMap builds a snapshot directly from values, for callers
// that assemble settings outside the store.
func NewSnapshotFromMap(values map[string]string, version int64) *Snapshot {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Snapshot{values: copied, Version: version, LoadedAt: time.Now()}
}
