package bootstrap

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/eleven-am/conference-signaling/internal/room"
)

// ProvideRedisClient returns nil when no address is configured; every
// consumer treats a nil client as "no shared store".
func ProvideRedisClient(cfg *Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func ProvideRoomStore(redisClient *redis.Client, cfg *Config) *room.Store {
	if redisClient == nil {
		return nil
	}
	return room.NewStore(redisClient, cfg.RoomMirrorTTL)
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideRedisClient,
		ProvideRoomStore,
	),
)
