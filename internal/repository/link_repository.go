package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/cmla-cc/shortlink/internal/model"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrAliasExists  = errors.New("alias already exists")
	ErrStore        = errors.New("store error")
)

const storeTimeout = 3 * time.Second

// LinkRepository is the gateway to the key-value store. Keys are aliases,
// values are the JSON-encoded LinkRecord.
type LinkRepository interface {
	Find(ctx context.Context, alias string) (*model.LinkRecord, error)
	Create(ctx context.Context, alias string, record *model.LinkRecord) error
	Update(ctx context.Context, alias string, record *model.LinkRecord) error
}

// RedisLinkRepository implements LinkRepository on a Redis client.
type RedisLinkRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisLinkRepository(client *redis.Client) *RedisLinkRepository {
	return &RedisLinkRepository{
		client: client,
		logger: zap.L().With(zap.String("component", "RedisLinkRepository")),
	}
}

// Find retrieves the record stored under alias, or ErrLinkNotFound.
func (r *RedisLinkRepository) Find(ctx context.Context, alias string) (*model.LinkRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, alias).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Link not found", zap.String("alias", alias))
			return nil, ErrLinkNotFound
		}
		r.logger.Error("Failed to read link", zap.Error(err), zap.String("alias", alias))
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	record := &model.LinkRecord{}
	if err := json.Unmarshal([]byte(val), record); err != nil {
		r.logger.Error("Failed to decode stored record", zap.Error(err), zap.String("alias", alias))
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	return record, nil
}

// Create stores a new record under alias. SETNX makes creation atomic, so
// two concurrent creates for the same alias cannot both win.
func (r *RedisLinkRepository) Create(ctx context.Context, alias string, record *model.LinkRecord) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	ok, err := r.client.SetNX(ctx, alias, payload, 0).Result()
	if err != nil {
		r.logger.Error("Failed to store link", zap.Error(err), zap.String("alias", alias))
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if !ok {
		return ErrAliasExists
	}

	r.logger.Info("Link created", zap.String("alias", alias), zap.String("url", record.Original))
	return nil
}

// Update overwrites the record stored under alias. Visit telemetry is
// last-write-wins; concurrent resolutions may drop increments.
func (r *RedisLinkRepository) Update(ctx context.Context, alias string, record *model.LinkRecord) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	if err := r.client.Set(ctx, alias, payload, 0).Err(); err != nil {
		r.logger.Error("Failed to update link", zap.Error(err), zap.String("alias", alias))
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}
