// Package cache keeps product definitions in memory with automatic
// invalidation via PostgreSQL LISTEN/NOTIFY.
package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sage/internal/domain"
	"sage/internal/domain/schema"
	"sage/pkg/logger"
)

// ChannelSchemaChanged is raised by the triggers on products, product_fields
// and validation_rules. The payload is the product id.
const ChannelSchemaChanged = "sage_schema_changed"

// DefaultTTL bounds staleness when notifications are lost.
const DefaultTTL = time.Minute

// Loader reads definitions from the store.
type Loader interface {
	GetProduct(ctx context.Context, id int64) (*schema.Product, error)
	Fields(ctx context.Context, productID int64) ([]*schema.Field, error)
}

// InvalidationListener is called after a product was evicted. productID is
// zero when the whole cache was dropped.
type InvalidationListener func(productID int64)

type entry struct {
	product  *schema.Product
	fields   []*schema.Field
	loadedAt time.Time
}

// DefinitionCache serves product definitions and their fields to the ingest
// and read paths.
type DefinitionCache struct {
	loader  Loader
	pool    *pgxpool.Pool
	ttl     time.Duration
	metrics domain.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	entries map[int64]*entry
	// gen advances on every eviction; a load that straddles one is not stored.
	gen uint64

	listeners   []InvalidationListener
	listenersMu sync.RWMutex

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewDefinitionCache creates a cache over loader. A nil pool disables
// LISTEN and leaves only ttl expiry.
func NewDefinitionCache(loader Loader, pool *pgxpool.Pool, ttl time.Duration, metrics domain.Metrics) *DefinitionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	return &DefinitionCache{
		loader:  loader,
		pool:    pool,
		ttl:     ttl,
		metrics: metrics,
		now:     time.Now,
		entries: make(map[int64]*entry),
	}
}

// GetProduct returns a copy of the cached product.
func (c *DefinitionCache) GetProduct(ctx context.Context, id int64) (*schema.Product, error) {
	e, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	p := *e.product
	return &p, nil
}

// Fields returns the cached fields of a product. The slice is a copy; the
// fields themselves are shared and must not be mutated.
func (c *DefinitionCache) Fields(ctx context.Context, productID int64) ([]*schema.Field, error) {
	e, err := c.get(ctx, productID)
	if err != nil {
		return nil, err
	}
	return append([]*schema.Field(nil), e.fields...), nil
}

func (c *DefinitionCache) get(ctx context.Context, id int64) (*entry, error) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.loadedAt) < c.ttl {
		c.metrics.Count(ctx, domain.MetricDefinitionCache, 1, "result", "hit")
		return e, nil
	}
	c.metrics.Count(ctx, domain.MetricDefinitionCache, 1, "result", "miss")

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	product, err := c.loader.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	fields, err := c.loader.Fields(ctx, id)
	if err != nil {
		return nil, err
	}
	e = &entry{product: product, fields: fields, loadedAt: c.now()}

	c.mu.Lock()
	if c.gen == gen {
		c.entries[id] = e
	}
	c.mu.Unlock()
	return e, nil
}

// Invalidate evicts one product.
func (c *DefinitionCache) Invalidate(productID int64) {
	c.mu.Lock()
	delete(c.entries, productID)
	c.gen++
	c.mu.Unlock()
	c.notifyListeners(productID)
}

// InvalidateAll drops every entry.
func (c *DefinitionCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[int64]*entry)
	c.gen++
	c.mu.Unlock()
	c.notifyListeners(0)
}

// Len returns the number of cached products.
func (c *DefinitionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// OnInvalidation registers a callback for evictions.
func (c *DefinitionCache) OnInvalidation(listener InvalidationListener) {
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, listener)
	c.listenersMu.Unlock()
}

func (c *DefinitionCache) notifyListeners(productID int64) {
	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()
	for _, listener := range c.listeners {
		func(l InvalidationListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(context.Background(), "cache listener panic recovered", "product_id", productID, "panic", r)
				}
			}()
			l(productID)
		}(listener)
	}
}

// Start begins listening for change notifications. It is a no-op without a pool.
func (c *DefinitionCache) Start(ctx context.Context) {
	if c.pool == nil {
		return
	}
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.started {
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true

	c.wg.Add(1)
	go c.listenLoop()
	logger.Info(c.ctx, "definition cache started", "ttl", c.ttl.String())
}

// Stop ends the listener and waits for it.
func (c *DefinitionCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	cancel()
	c.wg.Wait()
	logger.Info(context.Background(), "definition cache stopped")
}

func (c *DefinitionCache) listenLoop() {
	defer c.wg.Done()

	for c.ctx.Err() == nil {
		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				logger.Error(c.ctx, "acquire connection for LISTEN", "error", err)
				c.sleep(time.Second)
			}
			continue
		}
		if _, err := conn.Exec(c.ctx, "LISTEN "+ChannelSchemaChanged); err != nil {
			logger.Error(c.ctx, "LISTEN failed", "error", err)
			conn.Release()
			c.sleep(time.Second)
			continue
		}
		// Changes made while not listening are unknown.
		c.InvalidateAll()
		c.waitForNotifications(conn)
		conn.Release()
	}
}

func (c *DefinitionCache) waitForNotifications(conn *pgxpool.Conn) {
	for {
		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		n, err := conn.Conn().WaitForNotification(ctx)
		cancel()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if ctx.Err() != nil {
				continue
			}
			logger.Warn(c.ctx, "notification wait failed, reconnecting", "error", err)
			return
		}
		logger.Debug(c.ctx, "schema change notification", "payload", n.Payload)
		c.handlePayload(n.Payload)
	}
}

func (c *DefinitionCache) handlePayload(payload string) {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil || id <= 0 {
		c.InvalidateAll()
		return
	}
	c.Invalidate(id)
}

func (c *DefinitionCache) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c.ctx.Done():
	case <-t.C:
	}
}
