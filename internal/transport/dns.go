package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/patrickmn/go-cache"
)

type lookupFunc func(ctx context.Context, host string) ([]string, error)

// dnsCache memoizes host lookups for a bounded TTL
type dnsCache struct {
	cache  *cache.Cache
	lookup lookupFunc
}

func newDNSCache(ttl time.Duration, lookup lookupFunc) *dnsCache {
	if lookup == nil {
		lookup = net.DefaultResolver.LookupHost
	}
	return &dnsCache{
		cache:  cache.New(ttl, 2*ttl),
		lookup: lookup,
	}
}

// resolve returns the cached addresses of host, resolving on miss
func (d *dnsCache) resolve(ctx context.Context, host string) ([]string, error) {
	if v, ok := d.cache.Get(host); ok {
		return v.([]string), nil
	}

	addrs, err := d.lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses for host %s", host)
	}
	d.cache.Set(host, addrs, cache.DefaultExpiration)
	return addrs, nil
}

// idleConn resets a read deadline before every Read so that a stalled peer
// surfaces as a timeout after the idle period.
type idleConn struct {
	net.Conn
	idle time.Duration
}

func (c *idleConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.idle)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}
