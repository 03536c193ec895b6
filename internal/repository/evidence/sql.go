package evidence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kailas-cloud/feedtag/internal/db"
	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
)

// sqlStore is the consumer interface for SQL-backed evidence.
type sqlStore interface {
	DB() *sql.DB
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Compile-time check: SQLRepo implements Backend.
var _ Backend = (*SQLRepo)(nil)

// SQLRepo stores evidence in the evidence and totals tables.
type SQLRepo struct {
	store sqlStore
}

// NewSQLRepo creates a SQL-backed repository.
func NewSQLRepo(s sqlStore) *SQLRepo {
	return &SQLRepo{store: s}
}

const (
	selectEvidence = `SELECT word, pos_occ, neg_occ, pos_docs, neg_docs FROM evidence WHERE tag = ?`
	selectTotals   = `SELECT positive, negative FROM totals WHERE tag = ?`
	upsertEvidence = `INSERT INTO evidence (tag, word, pos_occ, neg_occ, pos_docs, neg_docs)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tag, word) DO UPDATE SET
			pos_occ = excluded.pos_occ, neg_occ = excluded.neg_occ,
			pos_docs = excluded.pos_docs, neg_docs = excluded.neg_docs`
	deleteWord   = `DELETE FROM evidence WHERE tag = ? AND word = ?`
	upsertTotals = `INSERT INTO totals (tag, positive, negative) VALUES (?, ?, ?)
		ON CONFLICT(tag) DO UPDATE SET positive = excluded.positive, negative = excluded.negative`
)

// Load reads the full evidence of a tag.
func (r *SQLRepo) Load(ctx context.Context, tag string) (bayes.Snapshot, error) {
	rows, err := r.store.DB().QueryContext(ctx, selectEvidence, tag)
	if err != nil {
		return bayes.Snapshot{}, &db.Error{Op: db.OpSelect, Err: fmt.Errorf("evidence %s: %w", tag, err)}
	}
	defer func() { _ = rows.Close() }()

	words := make(map[string]bayes.WordRecord)
	for rows.Next() {
		var w string
		var rec bayes.WordRecord
		if err := rows.Scan(&w, &rec.PositiveOccurrences, &rec.NegativeOccurrences,
			&rec.PositiveDocs, &rec.NegativeDocs); err != nil {
			return bayes.Snapshot{}, &db.Error{Op: db.OpSelect, Err: fmt.Errorf("scan %s: %w", tag, err)}
		}
		words[w] = rec
	}
	if err := rows.Err(); err != nil {
		return bayes.Snapshot{}, &db.Error{Op: db.OpSelect, Err: fmt.Errorf("evidence %s: %w", tag, err)}
	}

	var totals bayes.Totals
	err = r.store.DB().QueryRowContext(ctx, selectTotals, tag).Scan(&totals.Positive, &totals.Negative)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return bayes.Snapshot{}, &db.Error{Op: db.OpSelect, Err: fmt.Errorf("totals %s: %w", tag, err)}
	}
	return bayes.Snapshot{Words: words, Totals: totals}, nil
}

// Save applies the batch in one transaction.
func (r *SQLRepo) Save(ctx context.Context, tag string, b Batch) error {
	return r.store.WithTx(ctx, func(tx *sql.Tx) error {
		if len(b.Upserts) > 0 {
			stmt, err := tx.PrepareContext(ctx, upsertEvidence)
			if err != nil {
				return &db.Error{Op: db.OpUpsert, Err: err}
			}
			defer func() { _ = stmt.Close() }()
			for w, rec := range b.Upserts {
				if _, err := stmt.ExecContext(ctx, tag, w, rec.PositiveOccurrences, rec.NegativeOccurrences,
					rec.PositiveDocs, rec.NegativeDocs); err != nil {
					return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("%s/%s: %w", tag, w, err)}
				}
			}
		}
		if len(b.Removals) > 0 {
			stmt, err := tx.PrepareContext(ctx, deleteWord)
			if err != nil {
				return &db.Error{Op: db.OpDelete, Err: err}
			}
			defer func() { _ = stmt.Close() }()
			for _, w := range b.Removals {
				if _, err := stmt.ExecContext(ctx, tag, w); err != nil {
					return &db.Error{Op: db.OpDelete, Err: fmt.Errorf("%s/%s: %w", tag, w, err)}
				}
			}
		}
		if _, err := tx.ExecContext(ctx, upsertTotals, tag, b.Totals.Positive, b.Totals.Negative); err != nil {
			return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("totals %s: %w", tag, err)}
		}
		return nil
	})
}

// Delete drops all rows of a tag.
func (r *SQLRepo) Delete(ctx context.Context, tag string) error {
	return r.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM evidence WHERE tag = ?`, tag); err != nil {
			return &db.Error{Op: db.OpDelete, Err: fmt.Errorf("evidence %s: %w", tag, err)}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM totals WHERE tag = ?`, tag); err != nil {
			return &db.Error{Op: db.OpDelete, Err: fmt.Errorf("totals %s: %w", tag, err)}
		}
		return nil
	})
}

// Tags lists every persisted tag, sorted.
func (r *SQLRepo) Tags(ctx context.Context) ([]string, error) {
	rows, err := r.store.DB().QueryContext(ctx, `SELECT tag FROM totals ORDER BY tag`)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: fmt.Errorf("tags: %w", err)}
	}
	defer func() { _ = rows.Close() }()

	tags := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: fmt.Errorf("scan tag: %w", err)}
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: fmt.Errorf("tags: %w", err)}
	}
	return tags, nil
}
