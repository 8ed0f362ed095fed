// Package cache fronts every IMAP read with a short-lived, keyed cache
// so the UI is not paying an IMAP round-trip per request. Entries are
// indexed per account, which makes "drop everything for this account"
// and "drop everything for this account and folder" set scans instead
// of keyspace scans.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hourinbox/webmail/internal/kv"
)

const (
	keyPrefix   = "cache:"
	indexPrefix = "cache:idx:"

	// indexTTL caps how long an index set can outlive its members if an
	// invalidation is ever missed.
	indexTTL = 5 * time.Minute
)

// TTLs by data class. Resolution entries are stable once established,
// so they keep the longest lifetime.
const (
	FolderListTTL  = 60 * time.Second
	MessagePageTTL = 30 * time.Second
	MessageTTL     = 60 * time.Second
	SearchTTL      = 30 * time.Second
	ContactsTTL    = 300 * time.Second
	ResolveTTL     = 300 * time.Second
)

// MailCache is the server-side cache between the API surface and the
// mail gateway. Failures never propagate: a broken cache degrades the
// system to "slower", not "broken", so read errors report as misses and
// write/invalidate errors are logged and swallowed by callers.
type MailCache struct {
	kv  kv.Store
	log zerolog.Logger
}

// New creates a mail cache on top of the given kv store.
func New(kvStore kv.Store, log zerolog.Logger) *MailCache {
	return &MailCache{kv: kvStore, log: log}
}

// Key builders. Every per-account key embeds the account email so the
// index set can find it again.

func FoldersKey(email string) string {
	return keyPrefix + "folders:" + email
}

func MessagesKey(email, folder string, page, limit int) string {
	return fmt.Sprintf("%smessages:%s:%s:%d:%d", keyPrefix, email, folder, page, limit)
}

func MessageKey(email, folder string, uid uint32) string {
	return fmt.Sprintf("%smsg:%s:%s:%d", keyPrefix, email, folder, uid)
}

func ResolveKey(email, folder, messageID string) string {
	return fmt.Sprintf("%sresolve:%s:%s:%s", keyPrefix, email, folder, digest(messageID))
}

func StarredKey(email string) string {
	return keyPrefix + "starred:" + email
}

func ContactsKey(email string) string {
	return keyPrefix + "contacts:" + email
}

// SearchKey is scoped to the session token rather than the email so
// result pages cannot leak across a shared cache by account switching.
func SearchKey(token, folder, query string, limit int) string {
	return fmt.Sprintf("%ssearch:%s:%s:%s:%d", keyPrefix, token, folder, digest(query), limit)
}

// digest collapses arbitrary query text into a fixed-size key segment.
func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// Get unmarshals the cached payload for key into v. A false return is a
// miss; cache read errors also report as misses.
func (c *MailCache) Get(key string, v any) bool {
	raw, ok, err := c.kv.Get(key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry corrupt")
		return false
	}
	return true
}

// Set stores v under key with the given TTL and records the key in the
// account's index set. The index's own TTL is refreshed on every write
// so it never permanently outlives its members by more than indexTTL.
func (c *MailCache) Set(email, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}

	if err := c.kv.Set(key, string(payload), ttl); err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}

	indexKey := indexPrefix + email
	if err := c.kv.SAdd(indexKey, key); err != nil {
		return fmt.Errorf("indexing cache entry %s: %w", key, err)
	}
	if err := c.kv.Expire(indexKey, indexTTL); err != nil {
		return fmt.Errorf("refreshing cache index for %s: %w", email, err)
	}

	return nil
}

// InvalidateAccount drops every indexed key for the account plus the
// two always-implicated keys (folder list and starred view), then
// clears the index. Safe to call repeatedly; a second call is a no-op.
// Used after any mutation whose blast radius is unclear.
func (c *MailCache) InvalidateAccount(email string) error {
	indexKey := indexPrefix + email

	keys, err := c.kv.SMembers(indexKey)
	if err != nil {
		return fmt.Errorf("reading cache index for %s: %w", email, err)
	}

	toDelete := append(keys, FoldersKey(email), StarredKey(email), indexKey)
	if err := c.kv.Del(toDelete...); err != nil {
		return fmt.Errorf("invalidating cache for %s: %w", email, err)
	}

	return nil
}

// InvalidateFolder drops only the indexed keys containing the folder
// segment, plus the starred cache, since any flag change can affect
// the starred view. Other folders' entries stay intact, which keeps
// batch flag updates from wiping the whole account cache.
func (c *MailCache) InvalidateFolder(email, folder string) error {
	indexKey := indexPrefix + email

	keys, err := c.kv.SMembers(indexKey)
	if err != nil {
		return fmt.Errorf("reading cache index for %s: %w", email, err)
	}

	segment := ":" + email + ":" + folder + ":"
	var toDelete []string
	for _, k := range keys {
		if strings.Contains(k, segment) {
			toDelete = append(toDelete, k)
		}
	}

	if len(toDelete) > 0 {
		if err := c.kv.SRem(indexKey, toDelete...); err != nil {
			return fmt.Errorf("pruning cache index for %s: %w", email, err)
		}
	}

	toDelete = append(toDelete, FoldersKey(email), StarredKey(email))
	if err := c.kv.Del(toDelete...); err != nil {
		return fmt.Errorf("invalidating folder cache for %s: %w", email, err)
	}

	return nil
}
