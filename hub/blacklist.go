package hub

import (
	"net"
	"sync"

	"samizdat/kv"
)

// Blacklist is an in-memory, KV-persisted set of denied IPs, supplementing
// the hub's admission control: connections from a blacklisted address are
// refused before any RPC is processed.
type Blacklist struct {
	mu    sync.RWMutex
	store kv.Store
	cache map[string]struct{}
}

// LoadBlacklist reads the persisted set from store's TableGlobal table
// under the "blacklist" prefix and keeps an in-memory mirror for fast
// lookups on the connection accept path.
func LoadBlacklist(store kv.Store) (*Blacklist, error) {
	bl := &Blacklist{store: store, cache: make(map[string]struct{})}
	lower, upper := kv.TablePrefix(blacklistTable)
	it := store.NewIterator(lower, upper)
	defer it.Close()
	for it.Next() {
		ip := string(it.Key()[len(lower):])
		bl.cache[ip] = struct{}{}
	}
	return bl, it.Error()
}

const blacklistTable kv.Table = "blacklisted-ips"

// Add bans an IP, persisting it so the ban survives a restart.
func (bl *Blacklist) Add(ip net.IP) error {
	key := ip.String()
	if err := bl.store.Set(kv.Key(blacklistTable, []byte(key)), []byte{1}); err != nil {
		return err
	}
	bl.mu.Lock()
	bl.cache[key] = struct{}{}
	bl.mu.Unlock()
	return nil
}

// Remove lifts a ban.
func (bl *Blacklist) Remove(ip net.IP) error {
	key := ip.String()
	if err := bl.store.Delete(kv.Key(blacklistTable, []byte(key))); err != nil {
		return err
	}
	bl.mu.Lock()
	delete(bl.cache, key)
	bl.mu.Unlock()
	return nil
}

// Blocked reports whether ip is currently banned.
func (bl *Blacklist) Blocked(ip net.IP) bool {
	bl.mu.RLock()
	defer bl.mu.RUnlock()
	_, ok := bl.cache[ip.String()]
	return ok
}
