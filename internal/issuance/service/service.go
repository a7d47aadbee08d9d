// Package service exposes the issuance use cases on top of the workflow
// engine: credential requests, deep links, offers, connections and
// credential definitions.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"idmanager/internal/agent"
	"idmanager/internal/issuance/notify"
	"idmanager/internal/issuance/store"
	"idmanager/internal/issuance/workflow"
	dErrors "idmanager/pkg/domain-errors"
)

// AgentClient is the part of the agent API used outside the workflow.
type AgentClient interface {
	ReceiveConnectionInvitation(ctx context.Context, invitation json.RawMessage) (*agent.Connection, error)
	ReceiveOutOfBandInvitation(ctx context.Context, invitation json.RawMessage) (*agent.Connection, error)
	Schema(ctx context.Context, schemaID string) (*agent.Schema, error)
	CreateCredentialDefinition(ctx context.Context, req agent.CredentialDefinitionRequest) (*agent.CredentialDefinitionResponse, error)
}

type Service struct {
	store    store.Store
	engine   *workflow.Engine
	agent    AgentClient
	notifier notify.Notifier
	siteURL  string
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithSiteURL sets the public base URL used in deep links and polling URLs.
func WithSiteURL(siteURL string) Option {
	return func(s *Service) {
		s.siteURL = siteURL
	}
}

func New(st store.Store, engine *workflow.Engine, agentClient AgentClient, opts ...Option) *Service {
	s := &Service{
		store:   st,
		engine:  engine,
		agent:   agentClient,
		logger:  slog.Default(),
		siteURL: "http://localhost:8080",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(s.logger)
	}
	return s
}

// agentFailure keeps domain codes and labels anything else an agent error,
// or a timeout when the agent did not answer in time.
func agentFailure(err error, msg string) error {
	code := dErrors.CodeAgent
	if agentErr, ok := agent.AsError(err); ok && agentErr.Timeout() {
		code = dErrors.CodeTimeout
	}
	return dErrors.Wrap(err, code, msg)
}
