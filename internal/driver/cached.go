package driver

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// CachedDriver remembers successful completions per prompt for a fixed TTL.
// Failures are never cached.
type CachedDriver struct {
	next  Driver
	cache *ttlcache.Cache[string, string]
}

// NewCachedDriver wraps next. Call Close to stop the expiry goroutine.
func NewCachedDriver(next Driver, ttl time.Duration) *CachedDriver {
	cache := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()

	return &CachedDriver{next: next, cache: cache}
}

// Name returns the name of the wrapped driver.
func (d *CachedDriver) Name() string {
	return d.next.Name()
}

// Generate returns a cached completion or asks the wrapped driver.
func (d *CachedDriver) Generate(ctx context.Context, prompt string) (string, error) {
	if item := d.cache.Get(prompt); item != nil {
		return item.Value(), nil
	}

	text, err := d.next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	d.cache.Set(prompt, text, ttlcache.DefaultTTL)
	return text, nil
}

// Len returns the number of cached completions.
func (d *CachedDriver) Len() int {
	return d.cache.Len()
}

// Close stops the expiry goroutine.
func (d *CachedDriver) Close() {
	d.cache.Stop()
}
