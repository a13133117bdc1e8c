package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Notifier tells other instances that a group's state changed.
type Notifier interface {
	Publish(ctx context.Context, registry, groupID string) error
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, string, string) error { return nil }

type event struct {
	Registry string `json:"registry"`
	GroupID  string `json:"groupId"`
	Origin   string `json:"origin"`
}

// RedisNotifier fans refreshes out across instances over a Redis pub/sub
// channel. Each instance refreshes its own connections when another
// instance publishes.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
	origin  string
	log     *slog.Logger

	mu         sync.RWMutex
	registries map[string]*Registry
}

// NewRedisNotifier returns a notifier publishing on channel.
func NewRedisNotifier(rdb *redis.Client, channel string, log *slog.Logger) *RedisNotifier {
	return &RedisNotifier{
		rdb:        rdb,
		channel:    channel,
		origin:     uuid.NewString(),
		log:        log,
		registries: make(map[string]*Registry),
	}
}

// Attach makes regs publish through n and receive its events. Call it
// before the registries are used.
func (n *RedisNotifier) Attach(regs ...*Registry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, r := range regs {
		r.notifier = n
		n.registries[r.name] = r
	}
}

// Publish announces a refresh of groupID in registry.
func (n *RedisNotifier) Publish(ctx context.Context, registry, groupID string) error {
	b, err := json.Marshal(event{Registry: registry, GroupID: groupID, Origin: n.origin})
	if err != nil {
		return err
	}
	if err := n.rdb.Publish(ctx, n.channel, b).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run receives events until ctx is done.
func (n *RedisNotifier) Run(ctx context.Context) error {
	sub := n.rdb.Subscribe(ctx, n.channel)
	defer sub.Close() //nolint:errcheck
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := n.handle(ctx, []byte(msg.Payload)); err != nil {
				n.log.Warn("live: remote refresh", "err", err)
			}
		}
	}
}

// handle refreshes local connections for an event from another instance.
func (n *RedisNotifier) handle(ctx context.Context, payload []byte) error {
	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if ev.Origin == n.origin {
		return nil
	}
	n.mu.RLock()
	r, ok := n.registries[ev.Registry]
	n.mu.RUnlock()
	if !ok {
		return nil
	}
	return r.fanout(ctx, ev.GroupID)
}
