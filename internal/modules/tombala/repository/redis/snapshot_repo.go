// Package redis stores the lifecycle snapshot in Redis so every instance
// (and external readers) can serve it without touching the database.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/redis/go-redis/v9"
)

// SnapshotKey prefixes the JSON snapshot key; SnapshotKeyFor appends the
// network so mainnet and testnet instances can share one Redis
const SnapshotKey = "tombala:state"

// SnapshotKeyFor is the snapshot key of one network
func SnapshotKeyFor(network string) string {
	if network == "" {
		return SnapshotKey
	}
	return SnapshotKey + ":" + network
}

// SnapshotRepository implements domain.SnapshotStore using Redis
type SnapshotRepository struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewSnapshotRepository creates a Redis snapshot repository writing under key
func NewSnapshotRepository(rdb *redis.Client, key string) *SnapshotRepository {
	return &SnapshotRepository{
		rdb: rdb,
		key: key,
		ttl: 48 * time.Hour, // outlives one game window
	}
}

func (r *SnapshotRepository) Save(ctx context.Context, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, r.key, data, r.ttl)
	pipe.HSet(ctx, r.key+":game", map[string]interface{}{
		"game_id":    snap.GameID,
		"bets_count": snap.BetsCount,
		"pot":        snap.Pot.String(),
		"ends_at":    snap.EndsAt.Unix(),
		"last_event": snap.LastEvent,
	})
	pipe.Expire(ctx, r.key+":game", r.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) Load(ctx context.Context) (*domain.Snapshot, error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
