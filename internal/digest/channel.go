// Package digest stores the value digests produced by generated regression
// tests, one slot per optimization run and trial iteration, and compares
// candidate digests against the baseline reference.
package digest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/giantswarm/llm-optimizer/internal/testresult"
)

// ReferenceIteration is the slot iteration holding the baseline reference.
const ReferenceIteration = 0

// ErrClosed is returned when the channel is used after Close.
var ErrClosed = errors.New("digest channel is closed")

// Slot addresses the digests of one trial iteration of one optimization run.
type Slot struct {
	OptimizationID string
	Iteration      int
}

func (s Slot) prefix() []byte {
	return []byte(fmt.Sprintf("digest/%s/%06d/", s.OptimizationID, s.Iteration))
}

// Config configures the backing store. An empty Dir keeps everything in memory.
type Config struct {
	Dir    string
	Logger *slog.Logger
}

// Channel is a keyed store of generated-test outcomes.
type Channel struct {
	db     *badger.DB
	logger *slog.Logger
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens the digest channel.
func Open(cfg Config) (*Channel, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create digest directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir).WithSyncWrites(false)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open digest store: %w", err)
	}
	return &Channel{db: db, logger: logger}, nil
}

// Close releases the store.
func (c *Channel) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Reset removes every entry stored under slot.
func (c *Channel) Reset(slot Slot) error {
	if c.db == nil {
		return ErrClosed
	}
	prefix := slot.prefix()

	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan slot %s/%d: %w", slot.OptimizationID, slot.Iteration, err)
	}
	if len(keys) == 0 {
		return nil
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("failed to reset slot: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to reset slot: %w", err)
	}
	c.logger.Debug("reset digest slot", "optimization_id", slot.OptimizationID, "iteration", slot.Iteration, "removed", len(keys))
	return nil
}

// Publish stores every outcome of rs under slot.
func (c *Channel) Publish(slot Slot, rs *testresult.ResultSet) error {
	if c.db == nil {
		return ErrClosed
	}
	outcomes := rs.Outcomes()
	if len(outcomes) == 0 {
		return nil
	}

	prefix := slot.prefix()
	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for _, o := range outcomes {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("failed to encode outcome %s: %w", o.ID, err)
		}
		key := append(bytes.Clone(prefix), o.ID...)
		if err := wb.Set(key, data); err != nil {
			return fmt.Errorf("failed to publish outcome %s: %w", o.ID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to publish digests: %w", err)
	}
	return nil
}

// Get returns everything stored under slot.
func (c *Channel) Get(slot Slot) (*testresult.ResultSet, error) {
	if c.db == nil {
		return nil, ErrClosed
	}
	prefix := slot.prefix()
	rs := testresult.New()

	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var o testresult.Outcome
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &o)
			})
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", it.Item().Key(), err)
			}
			rs.Add(o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rs, nil
}
