package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceMirror keeps an advisory copy of who is online in Redis so the CRUD
// tier can render online badges. Fan-out never consults it; the in-process
// registry is authoritative for delivery.
type PresenceMirror struct {
	cli    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewPresenceMirror(cli *redis.Client, prefix string, ttl time.Duration) *PresenceMirror {
	return &PresenceMirror{cli: cli, prefix: prefix, ttl: ttl}
}

func (m *PresenceMirror) connKey(userID string) string {
	return fmt.Sprintf("%s:conn:%s", m.prefix, userID)
}

func (m *PresenceMirror) presenceKey(userID string) string {
	return fmt.Sprintf("%s:presence:%s", m.prefix, userID)
}

func (m *PresenceMirror) AddConnection(ctx context.Context, userID, socketID string) error {
	if err := m.cli.SAdd(ctx, m.connKey(userID), socketID).Err(); err != nil {
		return err
	}
	_ = m.cli.Expire(ctx, m.connKey(userID), m.ttl).Err()
	return m.cli.Set(ctx, m.presenceKey(userID), "1", m.ttl).Err()
}

func (m *PresenceMirror) RemoveConnection(ctx context.Context, userID, socketID string) error {
	if err := m.cli.SRem(ctx, m.connKey(userID), socketID).Err(); err != nil {
		return err
	}
	cnt, err := m.cli.SCard(ctx, m.connKey(userID)).Result()
	if err != nil {
		return err
	}
	if cnt == 0 {
		return m.cli.Set(ctx, m.presenceKey(userID), "0", 0).Err()
	}
	return nil
}

func (m *PresenceMirror) Online(ctx context.Context, userID string) (bool, error) {
	s, err := m.cli.Get(ctx, m.presenceKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s == "1", nil
}
