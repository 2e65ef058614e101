package cache

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/protobuf/proto"
)

// Redis guarda cotações, perfis e o documento de pricing. Escritas dos
// ledgers invalidam por padrão de chave (p7s:orders:*, p7s:wallet:*...).
type Redis struct {
	client *redis.Client
	ctx    context.Context
	prefix string
}

func New() *Redis {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal("redis url inválida:", err)
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 3

	client := redis.NewClient(opt)
	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping falhou:", err)
	}

	return &Redis{client: client, ctx: ctx, prefix: "p7s:"}
}

func (r *Redis) key(k string) string { return r.prefix + k }

// Get retrieves a JSON-encoded value from cache.
func (r *Redis) Get(key string, dest interface{}) bool {
	val, err := r.client.Get(r.ctx, r.key(key)).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), dest) == nil
}

// Set stores a JSON-encoded value in cache.
func (r *Redis) Set(key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	r.client.Set(r.ctx, r.key(key), data, ttl)
}

// Remember é o caminho read-through: devolve do cache ou carrega e guarda.
func (r *Redis) Remember(key string, ttl time.Duration, dest interface{}, load func() (interface{}, error)) error {
	if r.Get(key, dest) {
		return nil
	}
	v, err := load()
	if err != nil {
		return err
	}
	r.Set(key, v, ttl)
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// GetProto retrieves a protobuf-encoded value from cache.
func (r *Redis) GetProto(key string, dest proto.Message) bool {
	val, err := r.client.Get(r.ctx, r.key(key)).Bytes()
	if err != nil {
		return false
	}
	return proto.Unmarshal(val, dest) == nil
}

// SetProto stores a protobuf-encoded value in cache (faster + smaller).
func (r *Redis) SetProto(key string, msg proto.Message, ttl time.Duration) {
	data, err := proto.Marshal(msg)
	if err != nil {
		return
	}
	r.client.Set(r.ctx, r.key(key), data, ttl)
}

func (r *Redis) Del(keys ...string) {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	r.client.Del(r.ctx, full...)
}

// DelPattern deletes keys matching a pattern in batches to go easy on memory.
func (r *Redis) DelPattern(pattern string) {
	iter := r.client.Scan(r.ctx, 0, r.key(pattern), 0).Iterator()
	const batchSize = 100

	pipe := r.client.Pipeline()
	count := 0

	for iter.Next(r.ctx) {
		pipe.Del(r.ctx, iter.Val())
		count++

		if count >= batchSize {
			pipe.Exec(r.ctx)
			count = 0
		}
	}

	if count > 0 {
		pipe.Exec(r.ctx)
	}
}

func (r *Redis) Close() {
	r.client.Close()
}
