package hostadapter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
)

// countKeyPrefix namespaces per-day counter rows in the LevelDB keyspace,
// the same prefixed-key convention the teacher's nonce persistence layer
// uses (gateway/auth/nonce_leveldb.go's nonceKeyPrefix).
const countKeyPrefix = "splcap:perday:"

// LevelDBPerDayCounter is a durable per-day counter backed by LevelDB, for
// use by the policy daemon where counts must survive a restart. It is
// grounded on the teacher's LevelDBNoncePersistence: same open/close
// lifecycle, same big-endian counter encoding, repurposed from a
// seen-or-not nonce flag to a monotonically increasing count.
type LevelDBPerDayCounter struct {
	db *leveldb.DB
}

// OpenLevelDBPerDayCounter opens (or creates) a LevelDB database at path.
func OpenLevelDBPerDayCounter(path string) (*LevelDBPerDayCounter, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("leveldb per-day counter path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve leveldb per-day counter path: %w", err)
	}
	db, err := leveldb.OpenFile(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb per-day counter: %w", err)
	}
	return &LevelDBPerDayCounter{db: db}, nil
}

// Close releases the underlying LevelDB resources.
func (c *LevelDBPerDayCounter) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Increment atomically bumps the action|day bucket and returns its new
// value.
func (c *LevelDBPerDayCounter) Increment(action, day string) (int64, error) {
	if c == nil || c.db == nil {
		return 0, errors.New("leveldb per-day counter not configured")
	}
	key := []byte(countKeyPrefix + bucketKey(action, day))
	current, err := c.readCount(key)
	if err != nil {
		return 0, err
	}
	current++
	if err := c.db.Put(key, encodeCount(current), nil); err != nil {
		return 0, fmt.Errorf("record per-day count: %w", err)
	}
	return current, nil
}

// Count implements policy.PerDayCounter: a read-only lookup of the current
// bucket value, defaulting to zero when the bucket has never been touched.
func (c *LevelDBPerDayCounter) Count(action, day string) (int64, error) {
	if c == nil || c.db == nil {
		return 0, errors.New("leveldb per-day counter not configured")
	}
	return c.readCount([]byte(countKeyPrefix + bucketKey(action, day)))
}

func (c *LevelDBPerDayCounter) readCount(key []byte) (int64, error) {
	val, err := c.db.Get(key, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("load per-day count: %w", err)
	}
	return int64(binary.BigEndian.Uint64(val)), nil
}

func encodeCount(n int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}
