package evidence

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/feedtag/internal/db"
	"github.com/kailas-cloud/feedtag/internal/domain"
	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
)

// hashStore is the consumer interface for hash-backed evidence (ISP).
type hashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HUpdateMulti(ctx context.Context, updates []db.HashUpdate) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Compile-time check: HashRepo implements Backend.
var _ Backend = (*HashRepo)(nil)

// HashRepo keeps each tag in two hashes: <prefix>evidence:{<tag>} maps word to a
// msgpack record, <prefix>totals:{<tag>} holds the document totals.
type HashRepo struct {
	store  hashStore
	prefix string
}

// NewHashRepo creates a hash-backed repository. An empty prefix selects domain.KeyPrefix.
func NewHashRepo(s hashStore, prefix string) *HashRepo {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &HashRepo{store: s, prefix: prefix}
}

// Both keys of a tag share the {tag} hash slot so Save can run as one transaction on a cluster.
func (r *HashRepo) evidenceKey(tag string) string { return r.prefix + "evidence:{" + tag + "}" }
func (r *HashRepo) totalsKey(tag string) string   { return r.prefix + "totals:{" + tag + "}" }

// Load reads the full evidence of a tag. A tag never saved yields an empty snapshot.
func (r *HashRepo) Load(ctx context.Context, tag string) (bayes.Snapshot, error) {
	fields, err := r.store.HGetAll(ctx, r.evidenceKey(tag))
	if err != nil {
		return bayes.Snapshot{}, fmt.Errorf("hgetall evidence %s: %w", tag, err)
	}
	words := make(map[string]bayes.WordRecord, len(fields))
	for w, v := range fields {
		rec, err := decodeRecord(v)
		if err != nil {
			return bayes.Snapshot{}, fmt.Errorf("decode %s/%s: %w", tag, w, err)
		}
		words[w] = rec
	}

	m, err := r.store.HGetAll(ctx, r.totalsKey(tag))
	if err != nil {
		return bayes.Snapshot{}, fmt.Errorf("hgetall totals %s: %w", tag, err)
	}
	totals, err := totalsFromHash(m)
	if err != nil {
		return bayes.Snapshot{}, fmt.Errorf("decode totals %s: %w", tag, err)
	}
	return bayes.Snapshot{Words: words, Totals: totals}, nil
}

// Save writes words, removals and totals in one transaction.
func (r *HashRepo) Save(ctx context.Context, tag string, b Batch) error {
	set := make(map[string]string, len(b.Upserts))
	for w, rec := range b.Upserts {
		v, err := encodeRecord(rec)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", tag, w, err)
		}
		set[w] = v
	}
	updates := []db.HashUpdate{
		{Key: r.evidenceKey(tag), Set: set, Delete: b.Removals},
		{Key: r.totalsKey(tag), Set: totalsToHash(b.Totals)},
	}
	if err := r.store.HUpdateMulti(ctx, updates); err != nil {
		return fmt.Errorf("save evidence %s: %w", tag, err)
	}
	return nil
}

// Delete drops both hashes of a tag.
func (r *HashRepo) Delete(ctx context.Context, tag string) error {
	if err := r.store.Del(ctx, r.evidenceKey(tag), r.totalsKey(tag)); err != nil {
		return fmt.Errorf("del evidence %s: %w", tag, err)
	}
	return nil
}

// Tags lists every persisted tag, sorted.
func (r *HashRepo) Tags(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, r.totalsKey("*"))
	if err != nil {
		return nil, fmt.Errorf("scan tags: %w", err)
	}
	prefix := r.prefix + "totals:{"
	tags := make([]string, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, strings.TrimSuffix(strings.TrimPrefix(k, prefix), "}"))
	}
	sort.Strings(tags)
	return tags, nil
}
