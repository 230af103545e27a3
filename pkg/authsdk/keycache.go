package authsdk

import (
	"context"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/agrilink/agrilink/pkg/jwtx"
)

const (
	defaultKeyTTL       = 5 * time.Minute
	defaultFetchTimeout = 5 * time.Second

	// All concurrent misses collapse onto one fetch of the whole key set.
	fetchGroupKey = "jwks"
)

// KeySetCacheConfig tunes the remote key set cache.
type KeySetCacheConfig struct {
	// TTL is how long a fetched public key is served before it must be
	// re-fetched. Zero means the default of 5 minutes.
	TTL time.Duration

	// FetchTimeout bounds a single key set fetch. Zero means 5 seconds.
	FetchTimeout time.Duration
}

// KeySetCache caches the identity service's published public keys and
// implements jwtx.KeySource for local token verification at the edge.
//
// A lookup for an unknown key id triggers exactly one re-fetch of the whole
// key set no matter how many goroutines miss concurrently. A key id that is
// still unknown after a fresh fetch fails closed with jwtx.ErrUnknownKID.
type KeySetCache struct {
	client       *SDKClient
	cache        *ttlcache.Cache[string, *rsa.PublicKey]
	group        singleflight.Group
	fetchTimeout time.Duration
}

// NewKeySetCache creates a key cache backed by the given identity client.
// The caller should Stop the cache on shutdown.
func NewKeySetCache(client *SDKClient, cfg KeySetCacheConfig) *KeySetCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultKeyTTL
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, *rsa.PublicKey](ttl),
		// Keys expire on a fixed schedule so rotation is picked up even
		// under constant traffic.
		ttlcache.WithDisableTouchOnHit[string, *rsa.PublicKey](),
	)
	go cache.Start()

	return &KeySetCache{
		client:       client,
		cache:        cache,
		fetchTimeout: fetchTimeout,
	}
}

// Get returns the public key for kid, fetching the remote key set on a miss.
// Implements jwtx.KeySource.
func (kc *KeySetCache) Get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if item := kc.cache.Get(kid); item != nil {
		return item.Value(), nil
	}

	if err := kc.refresh(ctx); err != nil {
		return nil, err
	}

	if item := kc.cache.Get(kid); item != nil {
		return item.Value(), nil
	}

	// Fresh fetch and the kid still isn't published. Fail closed.
	return nil, fmt.Errorf("%w: kid %q not in remote key set", jwtx.ErrUnknownKID, kid)
}

// Warm fetches the key set eagerly. Useful at startup so the first request
// doesn't pay the fetch latency.
func (kc *KeySetCache) Warm(ctx context.Context) error {
	return kc.refresh(ctx)
}

// Stop releases the cache's eviction goroutine.
func (kc *KeySetCache) Stop() {
	kc.cache.Stop()
}

// refresh fetches the remote key set once, de-duplicated across concurrent
// callers, and replaces the cached keys.
func (kc *KeySetCache) refresh(ctx context.Context) error {
	_, err, _ := kc.group.Do(fetchGroupKey, func() (any, error) {
		// Detach from the winning caller's context so one caller's
		// cancellation doesn't fail every waiter sharing this fetch.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), kc.fetchTimeout)
		defer cancel()

		jwks, err := kc.client.GetJWKS(fetchCtx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", jwtx.ErrUpstream, err)
		}

		for _, jwk := range jwks.Keys {
			pub, err := jwk.PublicKey()
			if err != nil {
				// Skip keys we can't parse rather than poisoning the set.
				continue
			}
			kc.cache.Set(jwk.Kid, pub, ttlcache.DefaultTTL)
		}

		return nil, nil
	})
	return err
}
