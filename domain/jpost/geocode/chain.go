package geocode

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/asksbj/jpstamp-pipeline/internal/httpclient"
	"github.com/asksbj/jpstamp-pipeline/l3"
)

var logger = l3.Get()

// Chain tries each Vendor in order until one returns a result, memoizing
// successful lookups in an LRU cache keyed by (post office name,
// prefecture) and collapsing concurrent lookups of the same key with
// singleflight — grounded on original_source/utils/geo_info/factory.py's
// vendor iteration and PostOfficeLocationIngestor.GEO_INFO_CACHE.
type Chain struct {
	vendors []Vendor
	client  *httpclient.Client
	cache   *lru.Cache[string, *Address]
	group   singleflight.Group
}

// NewChain builds a Chain trying vendors in the given order, with an LRU
// cache of cacheSize entries for previously resolved addresses.
func NewChain(client *httpclient.Client, cacheSize int, vendors ...Vendor) (*Chain, error) {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, err := lru.New[string, *Address](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("geocode: building cache: %w", err)
	}
	return &Chain{vendors: vendors, client: client, cache: cache}, nil
}

func cacheKey(q Query) string {
	return q.PostOfficeName + "\x00" + q.PrefectureJA
}

// Lookup resolves q against the vendor chain, serving from cache when
// available and deduplicating concurrent identical lookups.
func (c *Chain) Lookup(ctx context.Context, q Query) (*Address, error) {
	key := cacheKey(q)
	if addr, ok := c.cache.Get(key); ok {
		return addr, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		addr, err := c.lookupFromVendors(ctx, q)
		if err != nil {
			return nil, err
		}
		if addr != nil {
			c.cache.Add(key, addr)
		}
		return addr, nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.(*Address), nil
}

func (c *Chain) lookupFromVendors(ctx context.Context, q Query) (*Address, error) {
	for _, v := range c.vendors {
		req, err := v.BuildRequest(ctx, q)
		if err != nil {
			logger.ErrorF("geocode: %s: building request for %q failed: %v", v.Name(), q.PostOfficeName, err)
			continue
		}

		body, err := c.client.Execute(req)
		if err != nil {
			logger.WarnF("geocode: %s: request failed for %q: %v", v.Name(), q.PostOfficeName, err)
			continue
		}

		addr, err := v.ParseResult(body, q)
		if err != nil {
			logger.WarnF("geocode: %s: parsing response for %q failed: %v", v.Name(), q.PostOfficeName, err)
			continue
		}
		if addr != nil {
			return addr, nil
		}
	}
	logger.DebugF("geocode: no vendor produced a result for %q/%q", q.PostOfficeName, q.PrefectureJA)
	return nil, nil
}
