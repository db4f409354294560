package commerce

import (
	"sync"
	"time"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
)

// productCache memoizes one search result per query key. Catalog data
// changes slowly; a short TTL absorbs repeated lookups within a
// conversation without going stale.
type productCache struct {
	mu  sync.Mutex
	ttl time.Duration

	key  string
	at   time.Time
	data []domain.ProductRef
}

func newProductCache(ttl time.Duration) *productCache {
	return &productCache{ttl: ttl}
}

func (c *productCache) get(key string, now time.Time) ([]domain.ProductRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key == key && now.Sub(c.at) < c.ttl {
		return c.data, true
	}
	return nil, false
}

func (c *productCache) put(key string, data []domain.ProductRef, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
	c.at = now
	c.data = data
}

// shippingCache holds zones and per-zone methods.
type shippingCache struct {
	mu  sync.Mutex
	ttl time.Duration

	at            time.Time
	zones         []wcZone
	methodsByZone map[int64][]wcZoneMethod
}

func newShippingCache(ttl time.Duration) *shippingCache {
	return &shippingCache{ttl: ttl, methodsByZone: make(map[int64][]wcZoneMethod)}
}

func (c *shippingCache) getZones(now time.Time) ([]wcZone, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.zones) > 0 && now.Sub(c.at) < c.ttl {
		return c.zones, true
	}
	return nil, false
}

func (c *shippingCache) putZones(zones []wcZone, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zones = zones
	c.at = now
	c.methodsByZone = make(map[int64][]wcZoneMethod)
}

func (c *shippingCache) getMethods(zoneID int64) ([]wcZoneMethod, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.methodsByZone[zoneID]
	return m, ok
}

func (c *shippingCache) putMethods(zoneID int64, methods []wcZoneMethod) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methodsByZone[zoneID] = methods
}
