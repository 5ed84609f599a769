package config

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

var redisCtx = context.Background()

func GetRedisDB() *redis.Client {
	return rdb
}

// GetRedisLock returns the distributed lock client, or nil when redis is not
// configured. Callers must tolerate nil and fall back to lock-free behavior.
func GetRedisLock() *redislock.Client {
	return locker
}

// ConnectRedisWithRetry connects and sets the global redis client. Redis is
// optional; when REDIS_ADDRESS is empty the cache and the lock client stay nil
// and every helper degrades to a no-op.
func ConnectRedisWithRetry() {
	address := os.Getenv("REDIS_ADDRESS")
	if address == "" {
		log.Printf("REDIS_ADDRESS not set; running without redis cache/locks")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	for attempt := 1; attempt <= 5; attempt++ {
		if err := client.Ping(redisCtx).Err(); err == nil {
			rdb = client
			locker = redislock.New(client)
			log.Printf("connected to redis (attempt=%d)", attempt)
			return
		} else {
			log.Printf("failed to connect redis (attempt=%d): %v", attempt, err)
			time.Sleep(time.Second * time.Duration(attempt))
		}
	}
	log.Printf("redis unreachable; running without redis cache/locks")
}

// GetRedisObject reads a cached JSON object. Returns (false, nil) on a cache
// miss or when redis is not configured.
func GetRedisObject(key string, dest interface{}) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(redisCtx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func SetRedisObject(key string, value interface{}, ttl time.Duration) error {
	if rdb == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return rdb.Set(redisCtx, key, data, ttl).Err()
}

func RemoveRedisKey(key string) error {
	if rdb == nil {
		return nil
	}
	return rdb.Del(redisCtx, key).Err()
}
