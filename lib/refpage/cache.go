package refpage

import (
	"context"
	"errors"
	"time"

	"github.com/PuerkitoBio/purell"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrCacheMiss = errors.New("page not in cache")

const DefaultCacheTTL = time.Hour * 12

const normalizeFlags = purell.FlagsSafe |
	purell.FlagRemoveFragment |
	purell.FlagRemoveDuplicateSlashes |
	purell.FlagSortQuery

// NormalizeURL returns the form of link that is used to compare and cache pages.
func NormalizeURL(link string) (string, error) {
	return purell.NormalizeURLString(link, normalizeFlags)
}

// SameLocation reports whether two locations name the same page.
func SameLocation(a, b string) bool {
	if a == b {
		return true
	}
	if !IsURL(a) || !IsURL(b) {
		return false
	}
	na, err := NormalizeURL(a)
	if err != nil {
		return false
	}
	nb, err := NormalizeURL(b)
	if err != nil {
		return false
	}
	return na == nb
}

// Cache keeps fetched page bodies keyed by normalized url.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenCache opens (or creates) a page cache in dir, an empty dir keeps the
// cache in memory. ttl <= 0 means DefaultCacheTTL.
func OpenCache(dir string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db, ttl: ttl}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) Get(ctx context.Context, link string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "cache:get")
	defer span.End()

	key, err := NormalizeURL(link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return nil, err
	}
	span.SetAttributes(attribute.String("cache_key", key))

	var body []byte
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cached page")
		return nil, err
	}

	span.AddEvent(
		"returned cached page",
		trace.WithAttributes(attribute.Int("size", len(body))),
	)
	return body, nil
}

func (c *Cache) Set(ctx context.Context, link string, body []byte) error {
	ctx, span := tracer.Start(ctx, "cache:set")
	defer span.End()

	key, err := NormalizeURL(link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return err
	}
	span.SetAttributes(attribute.String("cache_key", key))

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), body).WithTTL(c.ttl))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write cached page")
		return err
	}
	return nil
}
