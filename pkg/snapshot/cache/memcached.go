// ABOUTME: memcached implementation of the snapshot content cache
// ABOUTME: Keys are prefixed and hashed when memcached would reject them

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// memcached rejects keys longer than this or containing spaces/control bytes
const maxKeyLen = 250

// MemcacheConfig defines how a Memcached cache is constructed.
type MemcacheConfig struct {
	Servers      []string
	Prefix       string
	Timeout      time.Duration
	MaxIdleConns int
	Expiry       time.Duration // zero keeps entries until evicted
}

// Memcached is a Cache backed by a fixed list of memcached servers.
type Memcached struct {
	client *memcache.Client
	prefix string
	expiry time.Duration
}

// NewMemcached connects lazily to cfg.Servers.
func NewMemcached(cfg MemcacheConfig) (*Memcached, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("cache: no memcached servers")
	}

	var servers memcache.ServerList
	if err := servers.SetServers(cfg.Servers...); err != nil {
		return nil, err
	}

	client := memcache.NewFromSelector(&servers)
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}
	if cfg.MaxIdleConns > 0 {
		client.MaxIdleConns = cfg.MaxIdleConns
	}

	return &Memcached{
		client: client,
		prefix: cfg.Prefix,
		expiry: cfg.Expiry,
	}, nil
}

func (m *Memcached) Get(key string) (string, error) {
	item, err := m.client.Get(m.key(key))
	if err == memcache.ErrCacheMiss {
		return "", ErrNotCached
	}
	if err != nil {
		return "", err
	}
	return string(item.Value), nil
}

func (m *Memcached) Set(key, value string) error {
	return m.client.Set(&memcache.Item{
		Key:        m.key(key),
		Value:      []byte(value),
		Expiration: int32(m.expiry / time.Second),
	})
}

// key maps a snapshot key onto a legal memcached key.
func (m *Memcached) key(k string) string {
	full := m.prefix + k
	if len(full) <= maxKeyLen && legalKey(full) {
		return full
	}
	sum := sha256.Sum256([]byte(k))
	return m.prefix + hex.EncodeToString(sum[:])
}

func legalKey(k string) bool {
	for i := 0; i < len(k); i++ {
		if k[i] <= ' ' || k[i] == 0x7f {
			return false
		}
	}
	return true
}
