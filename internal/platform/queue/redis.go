package queue

import (
	"context"
	"fmt"

	"code_duel/internal/platform/config"
	"code_duel/internal/platform/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var RDB *redis.Client

func ConnectRedis() error {
	RDB = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	if err := RDB.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("could not connect to redis at %s: %w", config.AppConfig.RedisAddr, err)
	}
	logger.L().Info("redis_connected", zap.String("addr", config.AppConfig.RedisAddr))
	return nil
}

func CloseRedis() {
	if RDB != nil {
		_ = RDB.Close()
		logger.L().Info("redis_closed")
	}
}
