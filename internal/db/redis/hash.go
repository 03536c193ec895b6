package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/feedtag/internal/db"
)

// HSet sets hash fields.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.do(ctx, s.hsetCmd(key, fields)).Error(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// HGetAll returns all fields of a hash. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// HDel removes specific fields from a hash.
func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	cmd := s.b().Hdel().Key(key).Field(fields...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpHDel, Err: err}
	}
	return nil
}

// HUpdateMulti applies every HSET and HDEL of the updates inside one MULTI/EXEC
// transaction sent in a single round-trip. Commands keep their order, so a field
// set and later deleted ends up deleted. Either all updates apply or none do.
func (s *Store) HUpdateMulti(ctx context.Context, updates []db.HashUpdate) error {
	cmds := make([]rueidis.Completed, 0, 2*len(updates)+2)
	ops := make([]string, 0, 2*len(updates))
	keys := make([]string, 0, 2*len(updates))
	cmds = append(cmds, s.b().Multi().Build())
	for _, u := range updates {
		if len(u.Set) > 0 {
			cmds = append(cmds, s.hsetCmd(u.Key, u.Set))
			ops = append(ops, db.OpHSet)
			keys = append(keys, u.Key)
		}
		if len(u.Delete) > 0 {
			cmds = append(cmds, s.b().Hdel().Key(u.Key).Field(u.Delete...).Build())
			ops = append(ops, db.OpHDel)
			keys = append(keys, u.Key)
		}
	}
	if len(ops) == 0 {
		return nil
	}
	cmds = append(cmds, s.b().Exec().Build())

	res := s.client.DoMulti(ctx, cmds...)
	if err := res[0].Error(); err != nil {
		return &db.Error{Op: db.OpMulti, Err: err}
	}
	// A command rejected while queueing aborts the whole transaction.
	for i, r := range res[1 : len(res)-1] {
		if err := r.Error(); err != nil {
			return &db.Error{Op: ops[i], Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
	}
	replies, err := res[len(res)-1].ToArray()
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	for i, m := range replies {
		if err := m.Error(); err != nil && i < len(ops) {
			return &db.Error{Op: ops[i], Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
	}
	return nil
}

// Del deletes keys.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	cmd := s.b().Del().Key(keys...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	cmd := s.b().Exists().Key(key).Build()
	count, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return count > 0, nil
}

// Scan iterates keys matching a pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

func (s *Store) hsetCmd(key string, fields map[string]string) rueidis.Completed {
	cmd := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	return cmd.Build()
}
