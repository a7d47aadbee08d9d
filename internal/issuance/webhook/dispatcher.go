package webhook

import (
	"context"
	"log/slog"

	"idmanager/internal/issuance/metrics"
	"idmanager/internal/issuance/models"
)

// Workflow is the part of the workflow engine driven by agent callbacks.
type Workflow interface {
	AcceptConnection(ctx context.Context, connectionID string) (*models.ConnectionInvitation, error)
	HasOffer(ctx context.Context, connectionID string) (bool, error)
	AcceptOffer(ctx context.Context, connectionID string) (*models.CredentialOffer, error)
}

// Scheduler arranges for an offer to be created on an accepted connection.
type Scheduler interface {
	Schedule(ctx context.Context, connectionID string, inv *models.ConnectionInvitation)
}

// Dispatcher routes agent callbacks by (topic, state).
type Dispatcher struct {
	workflow  Workflow
	scheduler Scheduler
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func NewDispatcher(workflow Workflow, scheduler Scheduler, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{workflow: workflow, scheduler: scheduler, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles one event and reports the metrics outcome. Errors are
// returned for logging only; callers always acknowledge the agent.
func (d *Dispatcher) Dispatch(ctx context.Context, topic string, ev *Event) (string, error) {
	switch {
	case topic == TopicConnections && ev.State == StateResponse:
		return d.connectionResponse(ctx, ev.ConnectionID)
	case topic == TopicIssueCredential && ev.State == StateCredentialIssued:
		return d.credentialIssued(ctx, ev.ConnectionID)
	default:
		d.logger.InfoContext(ctx, "webhook: invalid topic/state",
			"topic", topic,
			"state", ev.State,
		)
		return metrics.OutcomeIgnored, nil
	}
}

func (d *Dispatcher) connectionResponse(ctx context.Context, connectionID string) (string, error) {
	inv, err := d.workflow.AcceptConnection(ctx, connectionID)
	if err != nil {
		return metrics.OutcomeFailed, err
	}
	if inv == nil {
		d.logger.ErrorContext(ctx, "webhook: connection invitation not found", "connection_id", connectionID)
		return metrics.OutcomeIgnored, nil
	}
	d.logger.InfoContext(ctx, "webhook: processing: connection accepted", "connection_id", connectionID)

	if inv.CredentialRequestID == nil {
		d.logger.InfoContext(ctx, "webhook: connection serves no credential request", "connection_id", connectionID)
		return metrics.OutcomeProcessed, nil
	}
	exists, err := d.workflow.HasOffer(ctx, connectionID)
	if err != nil {
		return metrics.OutcomeFailed, err
	}
	if exists {
		d.logger.InfoContext(ctx, "webhook: credential offer already exists", "connection_id", connectionID)
		return metrics.OutcomeProcessed, nil
	}
	d.scheduler.Schedule(ctx, connectionID, inv)
	return metrics.OutcomeProcessed, nil
}

func (d *Dispatcher) credentialIssued(ctx context.Context, connectionID string) (string, error) {
	offer, err := d.workflow.AcceptOffer(ctx, connectionID)
	if err != nil {
		return metrics.OutcomeFailed, err
	}
	if offer == nil {
		d.logger.ErrorContext(ctx, "webhook: credential offer not found", "connection_id", connectionID)
		return metrics.OutcomeIgnored, nil
	}
	d.logger.InfoContext(ctx, "webhook: processing: credential accepted",
		"connection_id", connectionID,
		"cred_ex_id", offer.CredExID,
	)
	return metrics.OutcomeProcessed, nil
}
