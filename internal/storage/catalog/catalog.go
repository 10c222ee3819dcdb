package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
)

const keyPrefix = "artifact/"

// ErrNotFound is returned when no record exists for an artifact.
var ErrNotFound = errors.New("catalog: record not found")

// Record is the metadata kept for one artifact.
type Record struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Label          string              `json:"label,omitempty"`
	Leader         domain.ProcessID    `json:"leader"`
	Processes      []domain.ProcessID  `json:"processes,omitempty"`
	Codec          string              `json:"codec"`
	Digest         string              `json:"digest"`
	Size           int64               `json:"size"`
	CreatedAt      time.Time           `json:"created_at"`
	LastVerifiedAt *time.Time          `json:"last_verified_at,omitempty"`
	LastVerifyOK   bool                `json:"last_verify_ok"`
	Verdict        domain.VerdictLevel `json:"verdict,omitempty"`
}

// Catalog is a Badger-backed record store.
type Catalog struct {
	db     *badger.DB
	logger logger.Logger
}

// Open opens (or creates) the catalog in dir. Only one process can hold
// it at a time; a held lock is reported as ErrCatalogUnavailable.
func Open(dir string, l logger.Logger) (*Catalog, error) {
	if dir == "" {
		return nil, domain.ErrCatalogUnavailable.WithDetails("dir is required")
	}
	if l == nil {
		l = logger.Default()
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = &badgerLogger{logger: l}
	opts.SyncWrites = true
	opts.NumVersionsToKeep = 1
	// Metadata only; keep the footprint small.
	opts.MemTableSize = 8 << 20
	opts.ValueLogFileSize = 16 << 20
	opts.BlockCacheSize = 8 << 20

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.ErrCatalogUnavailable.WithDetails(dir).WithCause(err)
	}
	l.Debug("catalog opened", "dir", dir)
	return &Catalog{db: db, logger: l}, nil
}

func recordKey(name string) []byte {
	return []byte(keyPrefix + name)
}

// Put stores rec under its name.
func (c *Catalog) Put(ctx context.Context, rec *Record) error {
	if c == nil {
		return nil
	}
	if rec == nil || rec.Name == "" {
		return fmt.Errorf("catalog: record name is required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("catalog: marshal record: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.Name), data)
	})
}

// Get returns the record for name or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, name string) (*Record, error) {
	if c == nil {
		return nil, ErrNotFound
	}
	var rec Record
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(name))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes the record for name. A missing record is not an error.
func (c *Catalog) Delete(ctx context.Context, name string) error {
	if c == nil {
		return nil
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(name))
	})
}

// List returns every record ordered by creation time.
func (c *Catalog) List(ctx context.Context) ([]*Record, error) {
	if c == nil {
		return nil, nil
	}
	var records []*Record
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				c.logger.Warn("skipping unreadable catalog record", "key", string(it.Item().Key()), "error", err)
				continue
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.Before(records[j].CreatedAt) })
	return records, nil
}

// MarkVerified records the outcome of a verify run.
func (c *Catalog) MarkVerified(ctx context.Context, name string, ok bool, at time.Time) error {
	if c == nil {
		return nil
	}
	rec, err := c.Get(ctx, name)
	if err != nil {
		return err
	}
	at = at.UTC()
	rec.LastVerifiedAt = &at
	rec.LastVerifyOK = ok
	return c.Put(ctx, rec)
}

// Reconcile deletes records whose artifact is not in names and returns
// how many were removed.
func (c *Catalog) Reconcile(ctx context.Context, names []string) (int, error) {
	if c == nil {
		return 0, nil
	}
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	records, err := c.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, rec := range records {
		if present[rec.Name] {
			continue
		}
		if err := c.Delete(ctx, rec.Name); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		c.logger.Info("catalog reconciled", "removed", removed)
		c.gc()
	}
	return removed, nil
}

// gc reclaims value log space after deletions.
func (c *Catalog) gc() {
	for {
		if err := c.db.RunValueLogGC(0.5); err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				c.logger.Debug("catalog gc stopped", "error", err)
			}
			return
		}
	}
}

// Close closes the store.
func (c *Catalog) Close() error {
	if c == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("catalog: close: %w", err)
	}
	return nil
}

// badgerLogger adapts logger.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Badger reports table loading at info level; that is debug noise for a CLI.
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
