// Package workflow drives a credential request through connection and
// credential exchange with the agent.
//
// Every transition reads the most recent record for its key and writes with
// a conditional update, so duplicate webhook deliveries are no-ops. Per-key
// locks serialize the read-then-write windows across goroutines and, with a
// shared Locker, across processes.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"idmanager/internal/agent"
	"idmanager/internal/issuance/crafter"
	"idmanager/internal/issuance/events"
	"idmanager/internal/issuance/lock"
	"idmanager/internal/issuance/metrics"
	"idmanager/internal/issuance/models"
	"idmanager/internal/issuance/store"
)

// AgentClient is the part of the agent API the workflow drives.
type AgentClient interface {
	CreateConnectionInvitation(ctx context.Context) (*agent.Invitation, error)
	SendCredentialOffer(ctx context.Context, offer agent.CredentialOffer, connectionID string) (*agent.CredentialExchange, error)
	CredentialExchange(ctx context.Context, credExID string) (*agent.CredentialExchange, error)
	Revoke(ctx context.Context, req agent.RevokeRequest) (json.RawMessage, error)
}

// CrafterRegistry selects the crafter for a credential definition.
type CrafterRegistry interface {
	For(p crafter.Params) crafter.Crafter
}

type Engine struct {
	store     store.Store
	agent     AgentClient
	crafters  CrafterRegistry
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher events.Publisher
	locker    lock.Locker
	now       func() time.Time
	inflight  *singleflight.Group
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithLocker replaces the default in-process locker, e.g. with a Redis
// locker shared by several replicas.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(st store.Store, agentClient AgentClient, crafters CrafterRegistry, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		agent:     agentClient,
		crafters:  crafters,
		logger:    slog.Default(),
		publisher: events.NoopPublisher{},
		locker:    lock.NewLocalLocker(),
		now:       time.Now,
		inflight:  &singleflight.Group{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithStore returns an engine sharing every collaborator but the store.
// It is used to run transitions inside a store transaction.
func (e *Engine) WithStore(st store.Store) *Engine {
	clone := *e
	clone.store = st
	return &clone
}

func (e *Engine) transition(ctx context.Context, state models.State, event events.Event) {
	if e.metrics != nil {
		e.metrics.IncrementTransition(string(state))
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.ErrorContext(ctx, "failed to publish issuance event",
			"event_type", event.Type,
			"connection_id", event.ConnectionID,
			"error", err,
		)
	}
}

func (e *Engine) acquire(ctx context.Context, key string) (func(), error) {
	release, err := e.locker.Acquire(ctx, key)
	if err != nil {
		return nil, errors.Join(errLockUnavailable, err)
	}
	return release, nil
}
