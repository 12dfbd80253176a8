/*
Package redisstore implements online.Store over Redis, so several
OnlinePLT training processes can share one growing tree's shape. It is
a direct adaptation of pbanos-botanic's tree/redisstore (SetNX/Get/Set/
Del against a prefixed key per node), swapping string node IDs for
this domain's int32 node indices and encoding online.NodeRecord with
encoding/gob rather than that package's pluggable NodeEncodeDecoder:
a NodeRecord is an internal shape record no human ever edits directly,
the same justification package config gives for args.bin.
*/
package redisstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"strconv"

	"github.com/pbanos/napkinxc/online"
	redis "gopkg.in/redis.v5"
)

type store struct {
	rc     *redis.Client
	prefix string
}

// New builds an online.Store backed by a Redis client, namespacing
// every key under prefix so several trees can share one Redis DB.
func New(rc *redis.Client, prefix string) online.Store {
	return &store{rc: rc, prefix: prefix}
}

func (s *store) Create(ctx context.Context, n online.NodeRecord) error {
	data, err := encode(n)
	if err != nil {
		return fmt.Errorf("creating node %d: encoding: %w", n.Index, err)
	}
	ok, err := s.rc.SetNX(s.keyFor(n.Index), data, 0).Result()
	if err != nil {
		return fmt.Errorf("creating node %d in redis: %w", n.Index, err)
	}
	if !ok {
		return fmt.Errorf("creating node %d: already exists", n.Index)
	}
	return ctx.Err()
}

func (s *store) Get(ctx context.Context, index int32) (*online.NodeRecord, error) {
	data, err := s.rc.Get(s.keyFor(index)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving node %d: %w", index, err)
	}
	n, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("retrieving node %d: decoding: %w", index, err)
	}
	return n, ctx.Err()
}

func (s *store) Store(ctx context.Context, n online.NodeRecord) error {
	data, err := encode(n)
	if err != nil {
		return fmt.Errorf("storing node %d: encoding: %w", n.Index, err)
	}
	if _, err := s.rc.Set(s.keyFor(n.Index), data, 0).Result(); err != nil {
		return fmt.Errorf("storing node %d in redis: %w", n.Index, err)
	}
	return ctx.Err()
}

func (s *store) Delete(ctx context.Context, index int32) error {
	if _, err := s.rc.Del(s.keyFor(index)).Result(); err != nil {
		return fmt.Errorf("deleting node %d from redis: %w", index, err)
	}
	return ctx.Err()
}

func (s *store) Close(ctx context.Context) error {
	return s.rc.Close()
}

func (s *store) keyFor(index int32) string {
	return s.prefix + ":" + strconv.FormatInt(int64(index), 10)
}

func encode(n online.NodeRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*online.NodeRecord, error) {
	var n online.NodeRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&n); err != nil {
		return nil, err
	}
	return &n, nil
}
