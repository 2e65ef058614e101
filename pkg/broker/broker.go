package broker

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"

	"p7s/pkg/envelope"

	"github.com/redis/go-redis/v9"
)

// ChangeChannel carries the collection change events that feed the hub.
// Publishing through Redis (instead of straight into the hub) keeps
// fan-out correct with more than one server instance.
const ChangeChannel = "p7s:changes"

// ChangeEvent announces that documents of a collection changed. The hub
// re-runs subscribed queries and pushes the full result, never a diff.
type ChangeEvent struct {
	Collection string `json:"collection"`
	DocID      string `json:"docId,omitempty"`
}

type HandlerFunc func(envelope.Envelope)

type Broker struct {
	rdb      *redis.Client
	ctx      context.Context
	cancel   context.CancelFunc
	handlers sync.Map

	changeMu sync.RWMutex
	onChange []func(ChangeEvent)
}

func New() *Broker {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal("redis url inválida:", err)
	}

	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithCancel(context.Background())

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping falhou:", err)
	}

	return &Broker{rdb: rdb, ctx: ctx, cancel: cancel}
}

// PublishChange is called by services after every commit that touches an
// observable collection.
func (b *Broker) PublishChange(collection, docID string) {
	ev := ChangeEvent{Collection: collection, DocID: docID}
	data, _ := json.Marshal(ev)
	if err := b.rdb.Publish(b.ctx, ChangeChannel, data).Err(); err != nil {
		log.Printf("[BROKER] publish change %s: %v", collection, err)
	}
}

// OnChange registers a change-event consumer (the hub).
func (b *Broker) OnChange(fn func(ChangeEvent)) {
	b.changeMu.Lock()
	b.onChange = append(b.onChange, fn)
	b.changeMu.Unlock()
}

// SubscribeChanges starts the pub/sub read loop. Call once, after the
// consumers are registered.
func (b *Broker) SubscribeChanges() {
	sub := b.rdb.Subscribe(b.ctx, ChangeChannel)
	ch := sub.Channel()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-b.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				b.changeMu.RLock()
				consumers := b.onChange
				b.changeMu.RUnlock()
				for _, fn := range consumers {
					go fn(ev)
				}
			}
		}
	}()
}

// Publish sends an arbitrary envelope on a channel (admin notices,
// cross-instance pings).
func (b *Broker) Publish(channel string, env envelope.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	return b.rdb.Publish(b.ctx, channel, data).Err()
}

// Subscribe listens on envelope channels and dispatches to handlers by action.
func (b *Broker) Subscribe(channels ...string) {
	sub := b.rdb.Subscribe(b.ctx, channels...)
	ch := sub.Channel()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-b.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				env, err := envelope.Unmarshal([]byte(msg.Payload))
				if err != nil {
					continue
				}
				if fn, ok := b.handlers.Load(env.Action); ok {
					go fn.(HandlerFunc)(env)
				}
			}
		}
	}()
}

func (b *Broker) On(action string, fn HandlerFunc) {
	b.handlers.Store(action, fn)
}

func (b *Broker) Close() {
	b.cancel()
	b.rdb.Close()
}
