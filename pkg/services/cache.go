package services

import (
	"time"

	"google.golang.org/protobuf/proto"
)

// Cache é o que os services precisam do Redis. *cache.Redis satisfaz.
// As variantes proto servem os documentos quentes (config de pricing).
type Cache interface {
	Get(key string, dest interface{}) bool
	Set(key string, value interface{}, ttl time.Duration)
	GetProto(key string, dest proto.Message) bool
	SetProto(key string, msg proto.Message, ttl time.Duration)
	Remember(key string, ttl time.Duration, dest interface{}, load func() (interface{}, error)) error
	Del(keys ...string)
	DelPattern(pattern string)
}
