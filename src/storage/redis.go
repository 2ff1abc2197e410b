package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quote-relay/src/logger"
	"quote-relay/src/models"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 5 * time.Second

// -----------------------------------------------------------------------------

// RedisDB keeps every symbol state as one JSON field of a single hash.
type RedisDB struct {
	Config *models.MConfig
	Client *redis.Client
	Key    string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRedisDB(cfg *models.MConfig, log *logger.Logger) (*RedisDB, error) {
	if cfg.Storage.RedisAddr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	return &RedisDB{
		Config: cfg,
		Key:    cfg.Name + ":symbol_states",
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *RedisDB) Initialize() error {
	d.Client = redis.NewClient(&redis.Options{
		Addr:     d.Config.Storage.RedisAddr,
		Password: d.Config.Storage.RedisPassword,
		DB:       d.Config.Storage.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := d.Client.Ping(ctx).Err(); err != nil {
		d.Client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	d.Logger.Info("RedisDB initialized successfully (Key: %s)", d.Key)
	return nil
}

// -----------------------------------------------------------------------------

func (d *RedisDB) SaveSymbolStates(states []models.MSymbolState) error {
	if len(states) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(states))
	for _, s := range states {
		payload, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to encode state for %s: %w", s.Symbol, err)
		}
		fields[s.Symbol] = payload
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return d.Client.HSet(ctx, d.Key, fields).Err()
}

// -----------------------------------------------------------------------------

func (d *RedisDB) LoadSymbolStates() ([]models.MSymbolState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	raw, err := d.Client.HGetAll(ctx, d.Key).Result()
	if err != nil {
		return nil, err
	}

	states := make([]models.MSymbolState, 0, len(raw))
	for sym, payload := range raw {
		var st models.MSymbolState
		if err := json.Unmarshal([]byte(payload), &st); err != nil {
			d.Logger.Warning("Skipping unreadable state for %s: %v", sym, err)
			continue
		}
		st.Symbol = sym
		states = append(states, st)
	}
	return states, nil
}

// -----------------------------------------------------------------------------

func (d *RedisDB) Close() error {
	if d.Client != nil {
		return d.Client.Close()
	}
	return nil
}
