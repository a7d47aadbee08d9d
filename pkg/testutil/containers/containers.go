//go:build integration

// Package containers starts the Postgres, Redis and Kafka fixtures of the
// integration tests. Each one is started on first use and shared by the rest
// of the package run.
package containers

import (
	"sync"
	"testing"
)

// lazy starts a fixture once and hands the same instance to later callers.
type lazy[T any] struct {
	mu    sync.Mutex
	value *T
}

func (l *lazy[T]) get(t *testing.T, start func(*testing.T) *T) *T {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.value == nil {
		l.value = start(t)
	}
	return l.value
}

type Manager struct {
	postgres lazy[PostgresContainer]
	redis    lazy[RedisContainer]
	kafka    lazy[KafkaContainer]
}

var shared = &Manager{}

func GetManager() *Manager { return shared }

// GetPostgres returns a Postgres container with the issuance schema applied.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return m.postgres.get(t, NewPostgresContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return m.redis.get(t, NewRedisContainer)
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return m.kafka.get(t, NewKafkaContainer)
}
