// Package live pushes fresh group state to connected clients. A Registry
// holds the open connections of one channel (tasks or messages); every write
// to a group calls Refresh, which reloads the group's state once and writes
// it to each of the group's sinks.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by a sink that no longer accepts writes.
var ErrClosed = errors.New("live: sink closed")

// Loader returns the current state of a group, ready to be marshalled.
type Loader func(ctx context.Context, groupID string) (any, error)

// Sink is one client connection.
type Sink interface {
	// Send writes one payload. It must honour ctx's deadline.
	Send(ctx context.Context, payload []byte) error
	// Ping writes a keep-alive frame.
	Ping(ctx context.Context) error
	// Close releases the connection. It may be called more than once.
	Close() error
}

type conn struct {
	id       uint64
	groupID  string
	sink     Sink
	lastSeen atomic.Int64 // unix nanos of the last successful write
}

// Registry maps connection ids to the group they watch.
type Registry struct {
	name         string
	load         Loader
	log          *slog.Logger
	notifier     Notifier
	writeTimeout time.Duration

	mu     sync.RWMutex
	conns  map[uint64]*conn
	lastID uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for sink failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithNotifier tells other instances about every Refresh.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

// WithWriteTimeout bounds each individual sink write.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Registry) { r.writeTimeout = d }
}

// New returns an empty Registry named name whose state comes from load.
func New(name string, load Loader, opts ...Option) *Registry {
	r := &Registry{
		name:         name,
		load:         load,
		log:          slog.Default(),
		notifier:     nopNotifier{},
		writeTimeout: 5 * time.Second,
		conns:        make(map[uint64]*conn),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Name returns the channel name the registry was built with.
func (r *Registry) Name() string { return r.name }

// Subscribe registers sink for groupID and immediately pushes the group's
// current state to the group. If that first load fails the subscription is
// dropped and the error returned.
func (r *Registry) Subscribe(ctx context.Context, groupID string, sink Sink) (uint64, error) {
	c := &conn{groupID: groupID, sink: sink}
	c.lastSeen.Store(time.Now().UnixNano())

	r.mu.Lock()
	c.id = max(r.lastID+1, uint64(time.Now().UnixNano()))
	r.lastID = c.id
	r.conns[c.id] = c
	r.mu.Unlock()
	connections.WithLabelValues(r.name).Inc()

	if err := r.fanout(ctx, groupID); err != nil {
		r.Unsubscribe(c.id)
		return 0, err
	}
	return c.id, nil
}

// Unsubscribe removes a connection and closes its sink. It reports false
// when id was not registered.
func (r *Registry) Unsubscribe(id uint64) bool {
	return r.evict(id, "")
}

// Refresh loads groupID's state, writes it to every local connection of the
// group and then tells other instances to do the same. Sink failures evict
// the sink and are not returned; only a load failure is.
func (r *Registry) Refresh(ctx context.Context, groupID string) error {
	if err := r.fanout(ctx, groupID); err != nil {
		return err
	}
	if err := r.notifier.Publish(ctx, r.name, groupID); err != nil {
		r.log.Warn("live: publish refresh", "registry", r.name, "group_id", groupID, "err", err)
	}
	return nil
}

// Close evicts every connection watching groupID.
func (r *Registry) Close(groupID string) int {
	n := 0
	for _, c := range r.snapshot(groupID) {
		if r.evict(c.id, "closed") {
			n++
		}
	}
	return n
}

// CloseAll evicts every connection, for shutdown.
func (r *Registry) CloseAll() int {
	n := 0
	for _, c := range r.snapshot("") {
		if r.evict(c.id, "shutdown") {
			n++
		}
	}
	return n
}

// Sweep pings every connection and evicts those with no successful write in
// the last maxSilence.
func (r *Registry) Sweep(ctx context.Context, maxSilence time.Duration) int {
	conns := r.snapshot("")
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.write(ctx, c, func(ctx context.Context) error { return c.sink.Ping(ctx) }); err != nil {
				r.log.Debug("live: ping failed", "registry", r.name, "conn_id", c.id, "err", err)
			}
		}()
	}
	wg.Wait()

	cutoff := time.Now().Add(-maxSilence).UnixNano()
	n := 0
	for _, c := range conns {
		if c.lastSeen.Load() < cutoff && r.evict(c.id, "silent") {
			n++
		}
	}
	return n
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, maxSilence time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(ctx, maxSilence); n > 0 {
				r.log.Info("live: evicted silent connections", "registry", r.name, "count", n)
			}
		}
	}
}

// Len returns the number of open connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// LenGroup returns the number of open connections watching groupID.
func (r *Registry) LenGroup(groupID string) int {
	return len(r.snapshot(groupID))
}

// fanout pushes groupID's state to local connections only.
func (r *Registry) fanout(ctx context.Context, groupID string) error {
	conns := r.snapshot(groupID)
	if len(conns) == 0 {
		return nil
	}
	state, err := r.load(ctx, groupID)
	if err != nil {
		return fmt.Errorf("load %s for group %s: %w", r.name, groupID, err)
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", r.name, err)
	}

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.write(ctx, c, func(ctx context.Context) error { return c.sink.Send(ctx, payload) })
			if err != nil {
				pushes.WithLabelValues(r.name, "error").Inc()
				r.log.Warn("live: push failed", "registry", r.name, "conn_id", c.id, "err", err)
				r.evict(c.id, "write")
				return
			}
			pushes.WithLabelValues(r.name, "ok").Inc()
		}()
	}
	wg.Wait()
	return nil
}

// write runs fn against one sink with its own deadline, turning a panic
// into an error. Cancelling ctx does not abort the write; only the write
// timeout does, so one departed client cannot fail the others.
func (r *Registry) write(ctx context.Context, c *conn, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sink panic: %v", p)
		}
	}()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return err
	}
	c.lastSeen.Store(time.Now().UnixNano())
	return nil
}

// snapshot copies the connections of groupID, or all of them when groupID
// is empty.
func (r *Registry) snapshot(groupID string) []*conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*conn, 0, len(r.conns))
	for _, c := range r.conns {
		if groupID == "" || c.groupID == groupID {
			out = append(out, c)
		}
	}
	return out
}

// evict removes id and closes its sink. An empty reason is a normal
// unsubscribe and is not counted as an eviction.
func (r *Registry) evict(id uint64, reason string) bool {
	r.mu.Lock()
	c, ok := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	connections.WithLabelValues(r.name).Dec()
	if reason != "" {
		evictions.WithLabelValues(r.name, reason).Inc()
	}
	if err := c.sink.Close(); err != nil {
		r.log.Debug("live: close sink", "registry", r.name, "conn_id", id, "err", err)
	}
	return true
}
