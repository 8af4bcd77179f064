package tenant

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/clinigo/clinic-platform/shared/config"
)

// InvalidationChannel is the Redis pub/sub channel other instances use to
// propagate cache invalidations. A payload of "*" clears everything.
const InvalidationChannel = "clinic:cache:invalidate"

// ActivityRecorder receives fire-and-forget activity notifications for
// resolved connections
type ActivityRecorder interface {
	RecordActivity(desc *Descriptor)
}

type entry struct {
	desc         *Descriptor
	lastActivity atomic.Int64 // unix nanos, slides on every hit
}

func (e *entry) age(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, e.lastActivity.Load()))
}

// retiredConn parks an evicted isolated connection until its grace
// period elapses
type retiredConn struct {
	desc *Descriptor
	at   time.Time
}

// Cache maps clinic keys to connection descriptors. Descriptors are
// trusted for the staleness window (sliding on access) and re-resolved
// from the directory afterwards. Access is guarded by a RWMutex and a
// singleflight group so concurrent misses for one clinic issue a single
// directory query.
type Cache struct {
	directory DirectoryLookup
	builder   ClientBuilder
	ttl       time.Duration
	sweep     time.Duration

	mu      sync.RWMutex
	entries map[string]*entry
	retired []retiredConn
	grace   time.Duration
	sf      singleflight.Group

	monitor ActivityRecorder
	log     *logrus.Entry

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCache creates a connection cache
func NewCache(directory DirectoryLookup, builder ClientBuilder, cfg *config.PlatformConfig) *Cache {
	return &Cache{
		directory: directory,
		builder:   builder,
		ttl:       cfg.CacheTTL,
		sweep:     cfg.SweepInterval,
		grace:     time.Minute,
		entries:   make(map[string]*entry),
		log:       logrus.WithField("component", "connection-cache"),
		stopCh:    make(chan struct{}),
	}
}

// WithMonitor attaches a fire-and-forget activity recorder
func (c *Cache) WithMonitor(m ActivityRecorder) *Cache {
	c.monitor = m
	return c
}

// Get returns the connection descriptor for a clinic key, resolving it
// from the central directory on a miss or once the cached one goes stale.
// Status sentinel errors from the directory propagate unchanged and are
// never cached.
func (c *Cache) Get(ctx context.Context, key string) (*Descriptor, error) {
	if desc := c.fresh(key, true); desc != nil {
		c.recordActivity(desc)
		return desc, nil
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Another flight may have refreshed the entry while this caller
		// waited; don't resolve twice.
		if desc := c.fresh(key, false); desc != nil {
			return desc, nil
		}
		return c.resolve(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	desc := v.(*Descriptor)
	c.recordActivity(desc)
	return desc, nil
}

// fresh returns the cached descriptor when it is live and inside the
// staleness window, optionally sliding its activity clock. Liveness is
// evaluated under the lock; retire flips it only under the write lock.
func (c *Cache) fresh(key string, bump bool) *Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := c.entries[key]
	if e == nil || !e.desc.Live || e.age(time.Now()) >= c.ttl {
		return nil
	}
	if bump {
		e.lastActivity.Store(time.Now().UnixNano())
	}
	return e.desc
}

// resolve performs a full directory lookup + client build and stores the
// resulting descriptor, overwriting any prior entry for the key
func (c *Cache) resolve(ctx context.Context, key string) (*Descriptor, error) {
	clinic, err := c.directory.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	res := c.builder.Build(clinic)

	health := HealthHealthy
	if res.Mode == ModeDegraded {
		health = HealthWarning
	}

	desc := &Descriptor{
		ClinicID:       clinic.ID,
		Subdomain:      clinic.Subdomain,
		DatabaseName:   res.DatabaseName,
		SchemaVersion:  res.SchemaVersion,
		Provisioned:    clinic.DatabaseCreated,
		Mode:           res.Mode,
		DegradedReason: res.Reason,
		Health:         health,
		Live:           true,
		ResolvedAt:     time.Now(),
		DB:             res.DB,
	}

	ne := &entry{desc: desc}
	ne.lastActivity.Store(time.Now().UnixNano())

	c.mu.Lock()
	if old := c.entries[key]; old != nil {
		c.retire(old.desc)
	}
	c.entries[key] = ne
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"clinic":   key,
		"mode":     desc.Mode,
		"database": desc.DatabaseName,
	}).Info("Resolved clinic connection")

	return desc, nil
}

// Invalidate drops one clinic's descriptor
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.retire(e.desc)
		delete(c.entries, key)
	}
}

// Clear drops every descriptor
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		c.retire(e.desc)
	}
	c.entries = make(map[string]*entry)
}

// Len returns the number of cached descriptors
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartSweeper launches the periodic eviction of stale descriptors
func (c *Cache) StartSweeper() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweepStale()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// sweepStale evicts descriptors whose sliding age exceeds the window
func (c *Cache) sweepStale() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.age(now) >= c.ttl {
			c.retire(e.desc)
			delete(c.entries, key)
			c.log.WithField("clinic", key).Debug("Evicted stale connection")
		}
	}
	c.closeRetired(now)
}

// retire marks a descriptor dead. Its isolated connection pool is not
// closed here: a caller that obtained the descriptor just before the
// eviction may still be mid-query, so the pool is parked and released
// by a later sweep once the grace period elapses. Shared-store handles
// are long-lived and never closed. Caller holds mu.
func (c *Cache) retire(desc *Descriptor) {
	desc.Live = false
	if desc.Mode != ModeIsolated || desc.DB == nil {
		return
	}
	c.retired = append(c.retired, retiredConn{desc: desc, at: time.Now()})
}

// closeRetired releases parked pools older than the grace period.
// Caller holds mu.
func (c *Cache) closeRetired(now time.Time) {
	keep := c.retired[:0]
	for _, rc := range c.retired {
		if now.Sub(rc.at) < c.grace {
			keep = append(keep, rc)
			continue
		}
		closePool(rc.desc)
	}
	c.retired = keep
}

// closePool closes a descriptor's underlying connection pool
func closePool(desc *Descriptor) {
	if sqlDB, err := desc.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// ListenInvalidations subscribes to the Redis invalidation channel and
// applies remote invalidations until Stop is called
func (c *Cache) ListenInvalidations(rdb *redis.Client) {
	pubsub := rdb.Subscribe(context.Background(), InvalidationChannel)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == "*" {
					c.Clear()
				} else {
					c.Invalidate(msg.Payload)
				}
			case <-c.stopCh:
				return
			}
		}
	}()
}

// PublishInvalidation tells every instance to drop a clinic's descriptor;
// pass "*" to clear all caches
func PublishInvalidation(ctx context.Context, rdb *redis.Client, key string) error {
	return rdb.Publish(ctx, InvalidationChannel, key).Err()
}

// Stop halts the sweeper and any invalidation listener, then releases
// every parked pool
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()

	c.mu.Lock()
	for _, rc := range c.retired {
		closePool(rc.desc)
	}
	c.retired = nil
	c.mu.Unlock()
}

// recordActivity notifies the monitor without blocking the caller
func (c *Cache) recordActivity(desc *Descriptor) {
	if c.monitor == nil {
		return
	}
	go c.monitor.RecordActivity(desc)
}
